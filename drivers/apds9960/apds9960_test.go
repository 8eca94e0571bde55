package apds9960

import (
	"errors"
	"testing"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/devio/devfake"
)

func newFake() *devfake.Bus {
	b := devfake.New()
	b.Set(Address, regID, 0xAB)
	b.Set(Address, regCDataL, 0x34, 0x12, 0x01, 0x00, 0x02, 0x01, 0xFF, 0xFF)
	b.Set(Address, regPData, 200)
	return b
}

var fast = Config{GateInterval: time.Microsecond}

func TestModeEncode(t *testing.T) {
	cases := []struct {
		m    Mode
		want byte
	}{
		{Mode{}, 0x08},
		{Mode{Ambient: true}, 0x0B},
		{Mode{Proximity: true}, 0x0D},
		{Mode{Gesture: true}, 0x49},
		{DefaultMode(), 0x0F},
	}
	for _, c := range cases {
		if got := c.m.Encode(); got != c.want {
			t.Fatalf("%+v: 0x%02x, want 0x%02x", c.m, got, c.want)
		}
		if got := DecodeMode(c.want); got != c.m {
			t.Fatalf("DecodeMode(0x%02x) = %+v", c.want, got)
		}
	}
}

func TestInitSequence(t *testing.T) {
	b := newFake()
	d := New(b, fast)
	if err := d.gate.Wait(); err != nil {
		t.Fatal(err)
	}
	w := b.Writes(Address)
	if len(w) != len(initSequence)+1 {
		t.Fatalf("writes = %d", len(w))
	}
	if w[0][0] != regEnable || w[0][1] != enPON {
		t.Fatalf("first write = %x", w[0])
	}
	if got := b.Reg(Address, regControl); got != 0x09 {
		t.Fatalf("control = 0x%02x", got)
	}
	if got := b.Reg(Address, regEnable); got != 0x0F {
		t.Fatalf("enable = 0x%02x", got)
	}
}

func TestReads(t *testing.T) {
	d := New(newFake(), fast)
	c, err := d.ReadAmbient()
	if err != nil || c != 0x1234 {
		t.Fatalf("ambient = 0x%x, %v", c, err)
	}
	rgb, err := d.ReadRGB()
	if err != nil {
		t.Fatal(err)
	}
	if rgb != (RGB{R: 1, G: 0x102, B: 0xFFFF}) {
		t.Fatalf("rgb = %+v", rgb)
	}
	p, err := d.ReadProximity()
	if err != nil || p != 200 {
		t.Fatalf("proximity = %d, %v", p, err)
	}
}

func TestUnknownID(t *testing.T) {
	b := newFake()
	b.Set(Address, regID, 0x00)
	d := New(b, Config{GateAttempts: 2, GateInterval: time.Microsecond})
	if err := d.gate.Wait(); !errors.Is(err, devio.ErrUnexpectedID) {
		t.Fatalf("init err = %v", err)
	}
	if _, err := d.ReadAmbient(); !errors.Is(err, devio.ErrNotInitialised) {
		t.Fatalf("read err = %v", err)
	}
	if d.SetMode(DefaultMode()) {
		t.Fatal("SetMode succeeded")
	}
}

func TestSetModeAndClose(t *testing.T) {
	b := newFake()
	d := New(b, fast)
	if !d.SetMode(Mode{Gesture: true}) {
		t.Fatal("SetMode failed")
	}
	if got := b.Reg(Address, regEnable); got != 0x49 {
		t.Fatalf("enable = 0x%02x", got)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if got := b.Reg(Address, regEnable); got != 0 {
		t.Fatalf("enable after close = 0x%02x", got)
	}
}
