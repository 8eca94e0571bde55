package veml6075

import (
	"errors"
	"math"
	"testing"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/devio/devfake"
)

// word makes reads at reg return v little-endian, independent of the
// neighbouring command codes.
func word(b *devfake.Bus, reg byte, v uint16) {
	b.Stream(Address, reg, func(dst []byte) {
		dst[0] = byte(v)
		if len(dst) > 1 {
			dst[1] = byte(v >> 8)
		}
	})
}

func newFake() *devfake.Bus {
	b := devfake.New()
	word(b, regID, 0x0026)
	word(b, regUVA, 1100)
	word(b, regDummy, 100)
	word(b, regUVB, 1300)
	word(b, regComp1, 200)
	word(b, regComp2, 150)
	return b
}

func fastConfig() Config {
	return Config{GateInterval: time.Microsecond, PollInterval: time.Microsecond}
}

func TestInitWritesConfig(t *testing.T) {
	b := newFake()
	d := New(b, fastConfig())
	if err := d.gate.Wait(); err != nil {
		t.Fatal(err)
	}
	w := b.WritesTo(Address, regConf)
	if len(w) != 1 || w[0][0] != 0x10 || w[0][1] != 0x00 {
		t.Fatalf("conf writes = %x", w)
	}
	if d.State() != devio.Ready {
		t.Fatalf("state = %v", d.State())
	}
}

func TestReadAverageUVIndex(t *testing.T) {
	d := New(newFake(), fastConfig())
	got, err := d.ReadAverageUVIndex()
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultCoefficients().AverageUVIndex(Raw{UVA: 1100, Dummy: 100, UVB: 1300, Comp1: 200, Comp2: 150})
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("uvi = %v, want %v", got, want)
	}
}

func TestActiveForceWaitsForTrigger(t *testing.T) {
	b := newFake()
	s := Settings{IntegrationTime: IT50ms, ActiveForce: true}
	conf := s.Encode()
	// init read-back, trigger read, then the trigger bit clears on the
	// third poll.
	b.Script(Address, regConf, conf, conf, conf|confTrig, conf|confTrig, conf)
	d := New(b, Config{Settings: &s, GateInterval: time.Microsecond, PollInterval: time.Millisecond})

	r, err := d.ReadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if r.UVA != 1100 || r.Comp2 != 150 {
		t.Fatalf("raw = %+v", r)
	}
	writes := b.WritesTo(Address, regConf)
	if len(writes) != 2 || writes[1][0] != conf|confTrig {
		t.Fatalf("conf writes = %x", writes)
	}
	if n := b.Reads(Address, regConf); n != 5 {
		t.Fatalf("conf reads = %d, want 5", n)
	}
}

func TestReadBackMismatch(t *testing.T) {
	b := newFake()
	b.Script(Address, regConf, 0x7F)
	d := New(b, fastConfig())
	if err := d.gate.Wait(); !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("init err = %v", err)
	}
	if _, err := d.ReadUVA(); !errors.Is(err, devio.ErrNotInitialised) {
		t.Fatalf("read err = %v", err)
	}

	// the part answered, so Close still shuts it down
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	w := b.WritesTo(Address, regConf)
	if len(w) == 0 || w[len(w)-1][0]&confSD == 0 {
		t.Fatalf("uv_conf writes %v, last without SD", w)
	}
}

func TestWrongID(t *testing.T) {
	b := newFake()
	word(b, regID, 0x0060)
	d := New(b, fastConfig())
	if err := d.gate.Wait(); !errors.Is(err, devio.ErrUnexpectedID) {
		t.Fatalf("init err = %v", err)
	}
	if d.Configure(DefaultSettings()) {
		t.Fatal("Configure succeeded on failed device")
	}
}

func TestConfigure(t *testing.T) {
	b := newFake()
	d := New(b, fastConfig())
	s := Settings{IntegrationTime: IT400ms, HighDynamic: true}
	if !d.Configure(s) {
		t.Fatal("Configure failed")
	}
	if d.Settings() != s {
		t.Fatalf("settings = %+v", d.Settings())
	}
	if d.Configure(Settings{IntegrationTime: 9}) {
		t.Fatal("invalid settings accepted")
	}
}

func TestCloseShutsDown(t *testing.T) {
	b := newFake()
	d := New(b, fastConfig())
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if got := b.Reg(Address, regConf); got&confSD == 0 {
		t.Fatalf("conf = 0x%02x, SD clear", got)
	}
}
