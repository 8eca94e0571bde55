package max30100

import (
	"errors"
	"math"
	"testing"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/devio/devfake"
)

func newReady(t *testing.T) (*devfake.Bus, *Device) {
	t.Helper()
	b := devfake.New()
	b.Set(Address, regPartID, PartID)
	d := New(b, Config{GateInterval: time.Microsecond, PollInterval: time.Microsecond})
	if err := d.gate.Wait(); err != nil {
		t.Fatal(err)
	}
	return b, d
}

// fill makes FIFO reads return samples with IR = base+i and Red = 2*(base+i).
func fill(b *devfake.Bus, base uint16) {
	b.Stream(Address, regFIFOData, func(dst []byte) {
		for i := 0; i+4 <= len(dst); i += 4 {
			ir := base + uint16(i/4)
			red := 2 * ir
			dst[i], dst[i+1] = byte(ir>>8), byte(ir)
			dst[i+2], dst[i+3] = byte(red>>8), byte(red)
		}
	})
}

func TestFIFOCount(t *testing.T) {
	cases := []struct {
		wr, ovf, rd byte
		want        int
	}{
		{0, 0, 0, 0},
		{5, 0, 2, 3},
		{2, 0, 14, 4},
		{7, 0, 7, 0},
		{7, 3, 7, 16},
	}
	for _, c := range cases {
		if got := fifoCount(c.wr, c.ovf, c.rd); got != c.want {
			t.Fatalf("fifoCount(%d,%d,%d) = %d, want %d", c.wr, c.ovf, c.rd, got, c.want)
		}
	}
}

func TestInitWritesDefaults(t *testing.T) {
	b, _ := newReady(t)
	if got := b.Reg(Address, regMode); got != 0x03 {
		t.Fatalf("mode = 0x%02x", got)
	}
	if got := b.Reg(Address, regSpO2); got != 0x47 {
		t.Fatalf("spo2 = 0x%02x", got)
	}
	if got := b.Reg(Address, regLED); got != 0x44 {
		t.Fatalf("led = 0x%02x", got)
	}
	if w := b.WritesTo(Address, regFIFOWr); len(w) != 1 || len(w[0]) != 3 {
		t.Fatalf("fifo pointer reset = %x", w)
	}
}

func TestReadSamplesUsesPointers(t *testing.T) {
	b, d := newReady(t)
	b.Set(Address, regFIFOWr, 5, 0, 2)
	fill(b, 1000)
	s, err := d.ReadSamples()
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 3 {
		t.Fatalf("samples = %d, want 3", len(s))
	}
	for i, v := range s {
		if v.IR != 1000+uint16(i) || v.Red != 2*(1000+uint16(i)) {
			t.Fatalf("sample %d = %+v", i, v)
		}
	}
	for _, op := range b.Ops() {
		if len(op.W) == 1 && op.W[0] == regFIFOData && op.R != 12 {
			t.Fatalf("fifo burst = %d bytes, want 12", op.R)
		}
	}
}

func TestReadAveragesAndEstimate(t *testing.T) {
	b, d := newReady(t)
	b.Set(Address, regFIFOWr, 0, 1, 0)
	fill(b, 2000)
	a, err := d.ReadAverages()
	if err != nil {
		t.Fatal(err)
	}
	if a.N != 16 || a.IR != 2007.5 || a.Red != 4015 {
		t.Fatalf("averages = %+v", a)
	}
	hr, err := d.ReadHeartRateEstimate()
	if err != nil || math.Abs(hr-2007.5/200) > 1e-9 {
		t.Fatalf("hr = %v, %v", hr, err)
	}
}

func TestReadAveragesEmpty(t *testing.T) {
	b, d := newReady(t)
	b.Set(Address, regFIFOWr, 4, 0, 4)
	if _, err := d.ReadAverages(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v", err)
	}
}

func TestReadTemperature(t *testing.T) {
	b, d := newReady(t)
	b.Set(Address, regTempInt, 0xFE, 0x04) // -2 + 0.25
	b.Script(Address, regMode, 0x03, modeTempEn|0x03, modeTempEn|0x03, 0x03)
	got, err := d.ReadTemperature()
	if err != nil {
		t.Fatal(err)
	}
	if got != -1.75 {
		t.Fatalf("temperature = %v", got)
	}
	w := b.WritesTo(Address, regMode)
	if last := w[len(w)-1]; last[0] != modeTempEn|0x03 {
		t.Fatalf("mode write = %x", last)
	}
}

func TestWrongPartID(t *testing.T) {
	b := devfake.New()
	d := New(b, Config{GateAttempts: 2, GateInterval: time.Microsecond})
	if err := d.gate.Wait(); !errors.Is(err, devio.ErrUnexpectedID) {
		t.Fatalf("err = %v", err)
	}
	if _, err := d.ReadSamples(); !errors.Is(err, devio.ErrNotInitialised) {
		t.Fatalf("read err = %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeHeartRate, ModeSpO2} {
		for sr := Rate50; sr <= Rate1000; sr++ {
			for pw := PW200us; pw <= PW1600us; pw++ {
				for _, hr := range []bool{false, true} {
					s := Settings{Mode: m, HighRes: hr, SampleRate: sr, PulseWidth: pw, RedCurrent: 9, IRCurrent: 15}
					if got := Decode(s.Encode()); got != s {
						t.Fatalf("round trip %+v -> %+v", s, got)
					}
				}
			}
		}
	}
	if err := (Settings{Mode: 1}).Validate(); !errors.Is(err, devio.ErrInvalidParams) {
		t.Fatalf("mode 1: %v", err)
	}
	s := DefaultSettings()
	s.RedCurrent = 16
	if err := s.Validate(); !errors.Is(err, devio.ErrInvalidParams) {
		t.Fatalf("current 16: %v", err)
	}
}

func TestCloseShutsDown(t *testing.T) {
	b, d := newReady(t)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Reg(Address, regLED) != 0 || b.Reg(Address, regMode)&modeShutdown == 0 {
		t.Fatalf("led = 0x%02x mode = 0x%02x", b.Reg(Address, regLED), b.Reg(Address, regMode))
	}
}
