package bme280

import (
	"errors"
	"math"
	"testing"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/devio/devfake"
)

func encodeCal(c Calibration) (a [calib00Len]byte, b [calib26Len]byte) {
	put := func(dst []byte, v uint16) { dst[0], dst[1] = byte(v), byte(v>>8) }
	put(a[0:], c.T1)
	put(a[2:], uint16(c.T2))
	put(a[4:], uint16(c.T3))
	put(a[6:], c.P1)
	for i, p := range []int16{c.P2, c.P3, c.P4, c.P5, c.P6, c.P7, c.P8, c.P9} {
		put(a[8+2*i:], uint16(p))
	}
	a[25] = c.H1
	put(b[0:], uint16(c.H2))
	b[2] = c.H3
	b[3] = byte(c.H4 >> 4)
	b[4] = byte(c.H4&0x0F) | byte(c.H5&0x0F)<<4
	b[5] = byte(c.H5 >> 4)
	b[6] = byte(c.H6)
	return a, b
}

func newFake() *devfake.Bus {
	bus := devfake.New()
	a, b := encodeCal(refCal)
	bus.Set(Address, regID, ChipID)
	bus.Set(Address, regCalib00, a[:]...)
	bus.Set(Address, regCalib26, b[:]...)
	// press 415148, temp 519888, hum 32000
	bus.Set(Address, regData, 0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00, 0x7D, 0x00)
	return bus
}

func TestReadNormalMode(t *testing.T) {
	bus := newFake()
	d := New(bus, Config{})

	m, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(m.Temperature-25.0825) > 0.0005 || math.Abs(m.Pressure-100653.258) > 0.01 {
		t.Fatalf("unexpected measurement %+v", m)
	}
	if d.Calibration() != refCal {
		t.Fatalf("calibration mismatch: %+v", d.Calibration())
	}
	if bus.Reads(Address, regStatus) != 0 {
		t.Fatal("normal mode should not poll status")
	}
	if _, err := d.ReadAltitude(1013.25); err != nil {
		t.Fatalf("ReadAltitude: %v", err)
	}
}

func TestInitWritesCtrlHumBeforeCtrlMeas(t *testing.T) {
	bus := newFake()
	d := New(bus, Config{})
	if err := d.gate.Wait(); err != nil {
		t.Fatal(err)
	}
	hum, meas := -1, -1
	for i, w := range bus.Writes(Address) {
		switch w[0] {
		case regCtrlHum:
			hum = i
		case regCtrlMeas:
			meas = i
		}
	}
	if hum < 0 || meas < 0 || hum > meas {
		t.Fatalf("ctrl_hum at %d, ctrl_meas at %d", hum, meas)
	}
	if got := bus.Reg(Address, regCtrlMeas); got != 0x6F {
		t.Fatalf("ctrl_meas = 0x%02x", got)
	}
}

func TestForcedReadWaitsForStatus(t *testing.T) {
	bus := newFake()
	bus.Script(Address, regStatus, statusMeasuring, statusMeasuring, statusMeasuring, 0x00)
	s := DefaultSettings()
	s.Mode = ModeForced
	d := New(bus, Config{Settings: &s})

	if _, err := d.ReadTemperature(); err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	statusReads := 0
	for _, op := range bus.Ops() {
		if op.R == 0 || len(op.W) == 0 {
			continue
		}
		switch op.W[0] {
		case regStatus:
			statusReads++
		case regData:
			if statusReads != 4 {
				t.Fatalf("data read after %d status polls, want 4", statusReads)
			}
			return
		}
	}
	t.Fatal("no data read")
}

func TestForcedReadTimesOut(t *testing.T) {
	bus := newFake()
	bus.Script(Address, regStatus, statusMeasuring)
	s := DefaultSettings()
	s.Mode = ModeForced
	d := New(bus, Config{Settings: &s, PollAttempts: 5, PollInterval: time.Microsecond})

	if _, err := d.Read(); !errors.Is(err, devio.ErrMeasureTimeout) {
		t.Fatalf("err = %v, want ErrMeasureTimeout", err)
	}
	if bus.Reads(Address, regData) != 0 {
		t.Fatal("data read despite timeout")
	}
}

func TestConfigureFailsWhenNeverReady(t *testing.T) {
	bus := newFake()
	bus.Set(Address, regID, 0x58) // a BMP280
	d := New(bus, Config{GateAttempts: 3, GateInterval: time.Millisecond})
	_ = d.gate.Wait()

	if d.Configure(DefaultSettings()) {
		t.Fatal("Configure succeeded on wrong chip")
	}
	if _, err := d.Read(); !errors.Is(err, devio.ErrNotInitialised) {
		t.Fatalf("Read err = %v", err)
	}
	if !errors.Is(d.InitErr(), devio.ErrUnexpectedID) {
		t.Fatalf("InitErr = %v", d.InitErr())
	}
}

func TestConfigureAndTransportFailure(t *testing.T) {
	bus := newFake()
	d := New(bus, Config{})
	s := Settings{Temperature: X1, Pressure: X2, Humidity: X16, Mode: ModeNormal, Standby: Standby20ms, Filter: FilterOff}
	if !d.Configure(s) {
		t.Fatal("Configure failed")
	}
	if got := Decode(Words{bus.Reg(Address, regCtrlHum), bus.Reg(Address, regCtrlMeas), bus.Reg(Address, regConfig)}); got != s {
		t.Fatalf("registers decode to %+v", got)
	}
	if d.Configure(Settings{Filter: 9}) {
		t.Fatal("invalid settings accepted")
	}

	bus.Fail(Address, regData, nil)
	if _, err := d.ReadHumidity(); !errors.Is(err, devio.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestCloseSleeps(t *testing.T) {
	bus := newFake()
	d := New(bus, Config{})
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if got := bus.Reg(Address, regCtrlMeas) & 0x03; got != byte(ModeSleep) {
		t.Fatalf("mode bits = %d after Close", got)
	}
}

func TestCloseSleepsAfterFailedInit(t *testing.T) {
	bus := newFake()
	bus.Set(Address, regCtrlMeas, 0x27) // left in normal mode by an earlier run
	bus.Fail(Address, regCalib26, nil)
	d := New(bus, Config{})
	if err := d.gate.Wait(); !errors.Is(err, devio.ErrTransport) {
		t.Fatalf("init err = %v", err)
	}
	if d.State() != devio.Failed {
		t.Fatalf("state = %v", d.State())
	}
	if d.Settings() != (Settings{}) {
		t.Fatalf("settings before ready: %+v", d.Settings())
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if got := bus.Reg(Address, regCtrlMeas) & 0x03; got != byte(ModeSleep) {
		t.Fatalf("mode bits = %d after Close", got)
	}
}

func TestCloseLeavesForeignChipAlone(t *testing.T) {
	bus := newFake()
	bus.Set(Address, regID, 0x58)
	d := New(bus, Config{})
	_ = d.gate.Wait()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if w := bus.Writes(Address); len(w) != 0 {
		t.Fatalf("wrote %v to a foreign chip", w)
	}
}
