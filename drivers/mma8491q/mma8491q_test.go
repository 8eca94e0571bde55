package mma8491q

import (
	"errors"
	"math"
	"testing"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/devio/devfake"
	"iothat-go/drivers/hatio"
)

type pin struct {
	level bool
	log   []bool
}

func (p *pin) Set(v bool) { p.level = v; p.log = append(p.log, v) }
func (p *pin) Get() bool  { return p.level }

func init() { sleep = func(time.Duration) {} }

func TestToG(t *testing.T) {
	cases := []struct {
		raw  uint16
		want float64
	}{
		{0x0000, 0},
		{0x0400, 1},
		{0x1FFF, 8191.0 / 1024},
		{0x3FFF, -1.0 / 1024},
		{0x3C00, -1},
		{0x2000, -8},
	}
	for _, c := range cases {
		if got := ToG(c.raw); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("ToG(0x%04x) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestReadPulsesEnable(t *testing.T) {
	b := devfake.New()
	// X = +1 g, Y = -1 g, Z = 0.5 g
	b.Set(Address, regOutX, 0x10, 0x00, 0xF0, 0x00, 0x08, 0x00)
	b.Script(Address, regStatus, 0x00, 0x00, statusZYXDR)
	en := &pin{}
	d := New(b, Config{Enable: en, PollInterval: time.Microsecond})

	a, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	if a.X != 1 || a.Y != -1 || a.Z != 0.5 {
		t.Fatalf("axes = %+v", a)
	}
	if n := b.Reads(Address, regStatus); n != 3 {
		t.Fatalf("status reads = %d, want 3", n)
	}
	want := []bool{false, true, false}
	if len(en.log) != len(want) {
		t.Fatalf("enable log = %v", en.log)
	}
	for i := range want {
		if en.log[i] != want[i] {
			t.Fatalf("enable log = %v", en.log)
		}
	}
}

func TestReadTimeoutDropsEnable(t *testing.T) {
	b := devfake.New()
	en := &pin{}
	d := New(b, Config{Enable: en, PollAttempts: 4, PollInterval: time.Microsecond})
	if _, err := d.Read(); !errors.Is(err, devio.ErrMeasureTimeout) {
		t.Fatalf("err = %v", err)
	}
	if en.level {
		t.Fatal("enable left high")
	}
}

func TestReadTiltActiveLow(t *testing.T) {
	tilt := &pin{}
	d := New(devfake.New(), Config{Enable: &pin{}, Tilt: tilt})
	got, err := d.ReadTilt()
	if err != nil || !got {
		t.Fatalf("low line: %v, %v", got, err)
	}
	tilt.level = true
	if got, _ := d.ReadTilt(); got {
		t.Fatal("high line reported tilt")
	}

	if _, err := New(devfake.New(), Config{}).ReadTilt(); !errors.Is(err, devio.ErrInvalidParams) {
		t.Fatalf("no tilt pin: %v", err)
	}
}

func TestTiltTrackerEmitsOnChange(t *testing.T) {
	var tr TiltTracker
	seq := []struct {
		state bool
		emit  bool
	}{
		{false, false},
		{false, false},
		{true, true},
		{true, false},
		{false, true},
	}
	for i, s := range seq {
		ev, ok := tr.Update(s.state)
		if ok != s.emit {
			t.Fatalf("step %d: emit = %v", i, ok)
		}
		if ok && (ev.Kind != hatio.KindTilt || ev.State != s.state) {
			t.Fatalf("step %d: %+v", i, ev)
		}
	}

	var first TiltTracker
	if _, ok := first.Update(true); !ok {
		t.Fatal("initial tilt not reported")
	}
}
