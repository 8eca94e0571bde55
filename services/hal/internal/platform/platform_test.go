package platform

import (
	"errors"
	"testing"

	"iothat-go/services/hal/internal/halcore"
	"iothat-go/types"
)

func TestFakePinEdges(t *testing.T) {
	f := NewHostPinFactory()
	p := f.Pin(25)
	var fired int
	if err := p.SetIRQ(halcore.EdgeRising, func() { fired++ }); err != nil {
		t.Fatal(err)
	}
	p.Set(true)  // rising
	p.Set(true)  // no edge
	p.Set(false) // falling, not armed
	p.Set(true)  // rising
	if fired != 2 {
		t.Fatalf("rising handler fired %d times, want 2", fired)
	}

	fired = 0
	_ = p.SetIRQ(halcore.EdgeBoth, func() { fired++ })
	p.Toggle()
	p.Toggle()
	if fired != 2 {
		t.Fatalf("both-edge handler fired %d times, want 2", fired)
	}

	_ = p.ClearIRQ()
	p.Toggle()
	if fired != 2 {
		t.Fatal("handler fired after ClearIRQ")
	}
}

func TestHostPinFactoryStable(t *testing.T) {
	f := NewHostPinFactory()
	a, _ := f.ByNumber(21)
	b, _ := f.ByNumber(21)
	if a != b {
		t.Fatal("ByNumber should return the same pin")
	}
	_ = a.ConfigureInput(halcore.PullUp)
	if !a.Get() || f.Pin(21).Pull() != halcore.PullUp {
		t.Fatal("pull-up input should idle high")
	}
	_ = a.ConfigureOutput(false)
	if a.Get() || !f.Pin(21).Output() {
		t.Fatal("output not configured low")
	}
}

func TestSimulatedHATIdentities(t *testing.T) {
	b := SimulatedHAT()
	cases := []struct {
		addr uint16
		reg  byte
		want byte
	}{
		{0x77, 0xD0, 0x60},
		{0x76, 0xD0, 0x61},
		{0x10, 0x0C, 0x26},
		{0x39, 0x92, 0xAB},
		{0x57, 0xFF, 0x11},
	}
	for _, c := range cases {
		r := make([]byte, 1)
		if err := b.Tx(c.addr, []byte{c.reg}, r); err != nil {
			t.Fatal(err)
		}
		if r[0] != c.want {
			t.Errorf("0x%02x reg 0x%02x = 0x%02x, want 0x%02x", c.addr, c.reg, r[0], c.want)
		}
	}
}

func TestOpenI2CFake(t *testing.T) {
	f, err := OpenI2C(BackendFake, []types.I2CBus{{ID: "hat", Number: 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	bus, ok := f.ByID("hat")
	if !ok {
		t.Fatal("bus not registered")
	}
	r := make([]byte, 1)
	if err := bus.Tx(0x77, []byte{0xD0}, r); err != nil || r[0] != 0x60 {
		t.Fatalf("tx through locked bus: %v 0x%02x", err, r[0])
	}
	if _, ok := f.ByID("i2c0"); ok {
		t.Fatal("unexpected bus")
	}
}

func TestOpenI2CDefaultsToBusOne(t *testing.T) {
	f, err := OpenI2C(BackendFake, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.ByID("i2c1"); !ok {
		t.Fatal("default bus i2c1 missing")
	}
}

func TestUnknownBackends(t *testing.T) {
	if _, err := OpenI2C("spi", nil, nil); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("OpenI2C: %v", err)
	}
	if _, _, err := OpenPins("wiringpi"); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("OpenPins: %v", err)
	}
}

func TestLockedI2CPassesThrough(t *testing.T) {
	b := SimulatedHAT()
	l := NewLockedI2C(b)
	r := make([]byte, 1)
	if err := l.Tx(0x57, []byte{0xFF}, r); err != nil || r[0] != 0x11 {
		t.Fatalf("got %v 0x%02x", err, r[0])
	}
}
