// Package bme680 drives the Bosch BME680 gas, temperature, pressure and
// humidity sensor.
//
// The device only converts in forced mode. Two ways to take a reading:
//
//	after, err := d.StartMeasurement(true) // write heater profile, trigger
//	m, err := d.Collect()                   // devio.ErrBusy while converting
//
//	m, err := d.Read(true)                  // trigger + bounded status poll
//
// The heater resistance is recomputed before every gas conversion from the
// most recent compensated temperature (25 °C before the first reading).
package bme680

import (
	"errors"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/internal/atmos"
	"iothat-go/x/mathx"
)

var lg = logger.NewPackageLogger("bme680", logger.InfoLevel)

// ErrNotStarted is returned by Collect when no StartMeasurement is pending.
var ErrNotStarted = errors.New("bme680: no measurement started")

// DefaultAmbient is the heater ambient temperature before any reading.
const DefaultAmbient int8 = 25

// Config controls addressing and timing. All fields are optional.
type Config struct {
	// Address defaults to 0x76.
	Address uint16
	// Settings applied at init. Nil means DefaultSettings().
	Settings *Settings
	// Gate budget. Default 100 x 10 ms.
	GateAttempts int
	GateInterval time.Duration
	// Busy-poll budget on top of the heater duration. Default 500 x 1 ms.
	PollAttempts int
	PollInterval time.Duration
}

func (c *Config) defaults() {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.GateAttempts <= 0 {
		c.GateAttempts = devio.DefaultGateAttempts
	}
	if c.GateInterval <= 0 {
		c.GateInterval = devio.DefaultGateInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = devio.DefaultPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = devio.DefaultPollInterval
	}
}

// Device is one BME680.
type Device struct {
	dev  *devio.Dev
	gate *devio.Gate
	cfg  Config

	cal     Calibration
	set     Settings
	ambient int8
	gasRun  bool // last trigger included a gas conversion
	pending bool // a forced conversion was started and not yet read
	buf     [dataLen]byte
}

// New binds the device and starts initialisation in the background.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.defaults()
	d := &Device{
		dev:     devio.New(bus, cfg.Address),
		gate:    devio.NewGate(),
		cfg:     cfg,
		ambient: DefaultAmbient,
	}
	d.gate.Start(d.init)
	return d
}

func (d *Device) init() error {
	id, err := d.dev.ReadU8(regID)
	if err != nil {
		return err
	}
	if id != ChipID {
		return &devio.IDError{Want: ChipID, Got: id}
	}
	cal, err := fetchCalibration(d.dev)
	if err != nil {
		return err
	}
	d.cal = cal
	s := DefaultSettings()
	if d.cfg.Settings != nil {
		s = *d.cfg.Settings
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := d.apply(s); err != nil {
		return err
	}
	lg.Debugf("bme680 at 0x%02x ready", d.cfg.Address)
	return nil
}

// apply writes ctrl_hum, ctrl_meas, config, then the gas control and the
// set-point 0 heater profile.
func (d *Device) apply(s Settings) error {
	w := s.Encode()
	writes := []struct{ reg, val byte }{
		{regCtrlHum, w.CtrlHum},
		{regCtrlMeas, w.CtrlMeas},
		{regConfig, w.Config},
		{regCtrlGas1, w.CtrlGas1},
		{regGasWait0, HeatDuration(s.Gas.HeaterDuration)},
		{regResHeat0, HeaterResistance(s.Gas.HeaterTemp, d.ambient, &d.cal)},
	}
	for _, x := range writes {
		if err := d.dev.WriteReg(x.reg, x.val); err != nil {
			return err
		}
	}
	d.set = s
	return nil
}

func (d *Device) State() devio.State { return d.gate.State() }

func (d *Device) InitErr() error { return d.gate.Err() }

// Calibration returns a copy of the factory constants. Zero before ready.
func (d *Device) Calibration() Calibration {
	if !d.gate.Ready() {
		return Calibration{}
	}
	return d.cal
}

// Settings returns the applied settings. Zero before ready.
func (d *Device) Settings() Settings {
	if !d.gate.Ready() {
		return Settings{}
	}
	return d.set
}

// Ambient is the temperature used for the next heater encoding.
func (d *Device) Ambient() int8 { return d.ambient }

// Configure validates and writes s. It reports false if init has not
// finished within the gate budget or a write failed.
func (d *Device) Configure(s Settings) bool {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		lg.Warnf("configure 0x%02x: not ready (%v)", d.cfg.Address, d.gate.Err())
		return false
	}
	if err := s.Validate(); err != nil {
		lg.Warnf("configure 0x%02x: %v", d.cfg.Address, err)
		return false
	}
	if err := d.apply(s); err != nil {
		lg.Warnf("configure 0x%02x: %v", d.cfg.Address, err)
		return false
	}
	return true
}

// StartMeasurement triggers one forced conversion and returns the nominal
// time until data is ready. With gas set, the heater profile is refreshed
// first and the gas conversion is enabled for this cycle.
func (d *Device) StartMeasurement(gas bool) (time.Duration, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return 0, devio.ErrNotInitialised
	}
	var ctrlGas1 byte
	if gas {
		res := HeaterResistance(d.set.Gas.HeaterTemp, d.ambient, &d.cal)
		if err := d.dev.WriteReg(regResHeat0, res); err != nil {
			return 0, err
		}
		ctrlGas1 = ctrlGas1RunGas
	}
	if err := d.dev.WriteReg(regCtrlGas1, ctrlGas1); err != nil {
		return 0, err
	}
	if err := d.dev.WriteReg(regCtrlMeas, d.set.Encode().CtrlMeas|modeForced); err != nil {
		return 0, err
	}
	d.gasRun = gas
	d.pending = true
	return d.duration(gas), nil
}

// duration follows the datasheet measurement-time estimate.
func (d *Device) duration(gas bool) time.Duration {
	cycles := osCycles(d.set.Temperature) + osCycles(d.set.Pressure) + osCycles(d.set.Humidity)
	us := cycles*1963 + 477*4 + 477*5 + 500
	dur := time.Duration(us)*time.Microsecond + time.Millisecond
	if gas {
		dur += time.Duration(d.set.Gas.HeaterDuration) * time.Millisecond
	}
	return dur
}

func osCycles(o Oversampling) int {
	if o == Skipped {
		return 0
	}
	return 1 << (o - 1)
}

func (d *Device) busyMask() byte {
	if d.gasRun {
		return statusMeasuring | statusGasMeasuring
	}
	return statusMeasuring
}

// Collect reads the result of the last StartMeasurement, or returns
// devio.ErrBusy while the device is still converting. Each started
// conversion is read at most once.
func (d *Device) Collect() (Measurement, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return Measurement{}, devio.ErrNotInitialised
	}
	if !d.pending {
		return Measurement{}, ErrNotStarted
	}
	st, err := d.dev.ReadU8(regMeasStatus0)
	if err != nil {
		return Measurement{}, err
	}
	if st&d.busyMask() != 0 {
		return Measurement{}, devio.ErrBusy
	}
	return d.readData()
}

func (d *Device) readData() (Measurement, error) {
	if err := d.dev.ReadReg(regData, d.buf[:]); err != nil {
		return Measurement{}, err
	}
	d.pending = false
	m := Compensate(parseRaw(d.buf[:]), &d.cal, d.gasRun)
	d.ambient = int8(mathx.Clamp(m.Temperature, -128, 127))
	return m, nil
}

// Read performs a complete forced cycle and polls until the measuring bit,
// and the gas measuring bit when gas is set, are both clear.
func (d *Device) Read(gas bool) (Measurement, error) {
	if _, err := d.StartMeasurement(gas); err != nil {
		return Measurement{}, err
	}
	attempts := d.cfg.PollAttempts
	if gas {
		attempts += int(d.set.Gas.HeaterDuration)
	}
	if err := d.dev.PollBitsClear(regMeasStatus0, d.busyMask(), attempts, d.cfg.PollInterval); err != nil {
		return Measurement{}, err
	}
	return d.readData()
}

// ReadTemperature returns °C from a TPH-only cycle.
func (d *Device) ReadTemperature() (float64, error) {
	m, err := d.Read(false)
	return m.Temperature, err
}

// ReadPressure returns Pa.
func (d *Device) ReadPressure() (float64, error) {
	m, err := d.Read(false)
	return m.Pressure, err
}

// ReadHumidity returns %RH.
func (d *Device) ReadHumidity() (float64, error) {
	m, err := d.Read(false)
	return m.Humidity, err
}

// ReadGasResistance returns Ohm from a cycle with the heater on.
func (d *Device) ReadGasResistance() (float64, error) {
	m, err := d.Read(true)
	return m.GasResistance, err
}

// ReadAltitude returns metres relative to seaLevelHPa.
func (d *Device) ReadAltitude(seaLevelHPa float64) (float64, error) {
	p, err := d.ReadPressure()
	if err != nil {
		return 0, err
	}
	return atmos.Altitude(p, seaLevelHPa)
}

// Close turns the heater off and leaves the sensor in sleep mode, also
// after a failed init that may have left the heater profile written.
// Failures are logged, not returned.
func (d *Device) Close() error {
	if err := d.gate.Wait(); errors.Is(err, devio.ErrUnexpectedID) {
		return nil // another part answers at this address
	} else if err != nil {
		lg.Debugf("close 0x%02x after failed init: %v", d.cfg.Address, err)
	}
	for _, x := range []struct{ reg, val byte }{
		{regCtrlGas1, 0},
		{regCtrlGas0, ctrlGas0HeatOff},
		{regCtrlMeas, d.set.Encode().CtrlMeas},
	} {
		if err := d.dev.WriteReg(x.reg, x.val); err != nil {
			lg.Warnf("close 0x%02x: %v", d.cfg.Address, err)
		}
	}
	return nil
}
