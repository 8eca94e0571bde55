// Package bme280 drives the Bosch BME280 temperature, pressure and humidity
// sensor.
//
// New returns at once and loads the calibration in the background. Every
// other call passes through the init gate first:
//
//	d := bme280.New(bus, bme280.Config{})
//	m, err := d.Read()              // one burst, temperature compensated first
//	ok := d.Configure(settings)     // false if the device never became ready
//
// In sleep or forced mode each read triggers a forced conversion and polls
// the status register with a bounded budget.
package bme280

import (
	"errors"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/internal/atmos"
)

var lg = logger.NewPackageLogger("bme280", logger.InfoLevel)

// Config controls addressing and timing. All fields are optional.
type Config struct {
	// Address defaults to 0x77.
	Address uint16
	// Settings applied at init. Zero value means DefaultSettings().
	Settings *Settings
	// Gate budget for calls made before init completes. Default 100 x 10 ms.
	GateAttempts int
	GateInterval time.Duration
	// Busy-poll budget for forced conversions. Default 500 x 1 ms.
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

// Device is one BME280.
type Device struct {
	dev  *devio.Dev
	gate *devio.Gate
	cfg  Config

	cal Calibration
	set Settings
	buf [dataLen]byte
}

// New binds the device and starts initialisation: chip id check,
// calibration fetch, then the initial settings.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.defaults()
	d := &Device{
		dev:  devio.New(bus, cfg.Address),
		gate: devio.NewGate(),
		cfg:  cfg,
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
	lg.Debugf("bme280 at 0x%02x ready", d.cfg.Address)
	return nil
}

// apply writes ctrl_hum before ctrl_meas: humidity settings only latch on
// the next ctrl_meas write.
func (d *Device) apply(s Settings) error {
	w := s.Encode()
	if err := d.dev.WriteReg(regCtrlHum, w.CtrlHum); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regConfig, w.Config); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regCtrlMeas, w.CtrlMeas); err != nil {
		return err
	}
	d.set = s
	return nil
}

// State reports the init gate state.
func (d *Device) State() devio.State { return d.gate.State() }

// InitErr is the background init error, if any.
func (d *Device) InitErr() error { return d.gate.Err() }

// Calibration returns a copy of the factory constants. Zero before ready.
func (d *Device) Calibration() Calibration {
	if !d.gate.Ready() {
		return Calibration{}
	}
	return d.cal
}

// Settings returns the settings last written. Zero before ready.
func (d *Device) Settings() Settings {
	if !d.gate.Ready() {
		return Settings{}
	}
	return d.set
}

// Configure validates and writes s. It reports false if init has not
// finished within the gate budget or the write failed.
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

// ReadRaw performs one acquisition and returns the ADC counts.
func (d *Device) ReadRaw() (Raw, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return Raw{}, devio.ErrNotInitialised
	}
	if d.set.Mode != ModeNormal {
		if err := d.force(); err != nil {
			return Raw{}, err
		}
	}
	if err := d.dev.ReadReg(regData, d.buf[:]); err != nil {
		return Raw{}, err
	}
	return parseRaw(d.buf[:]), nil
}

// force starts a single conversion and waits for it to finish.
func (d *Device) force() error {
	s := d.set
	s.Mode = ModeForced
	if err := d.dev.WriteReg(regCtrlMeas, s.Encode().CtrlMeas); err != nil {
		return err
	}
	return d.dev.PollBitsClear(regStatus, statusMeasuring, d.cfg.PollAttempts, d.cfg.PollInterval)
}

// Read returns all channels from one acquisition.
func (d *Device) Read() (Measurement, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return Measurement{}, err
	}
	return Compensate(r, &d.cal), nil
}

// ReadTemperature returns °C.
func (d *Device) ReadTemperature() (float64, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	t, _ := CompensateTemperature(r.Temperature, &d.cal)
	return t, nil
}

// ReadPressure returns Pa. The fine temperature comes from the same burst.
func (d *Device) ReadPressure() (float64, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	_, fine := CompensateTemperature(r.Temperature, &d.cal)
	return CompensatePressure(r.Pressure, &d.cal, fine), nil
}

// ReadHumidity returns %RH.
func (d *Device) ReadHumidity() (float64, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	_, fine := CompensateTemperature(r.Temperature, &d.cal)
	return CompensateHumidity(r.Humidity, &d.cal, fine), nil
}

// ReadAltitude returns metres relative to seaLevelHPa.
func (d *Device) ReadAltitude(seaLevelHPa float64) (float64, error) {
	p, err := d.ReadPressure()
	if err != nil {
		return 0, err
	}
	return atmos.Altitude(p, seaLevelHPa)
}

// Close puts the sensor to sleep, also after a failed init. Failures are
// logged, not returned.
func (d *Device) Close() error {
	if err := d.gate.Wait(); errors.Is(err, devio.ErrUnexpectedID) {
		return nil // another part answers at this address
	} else if err != nil {
		lg.Debugf("close 0x%02x after failed init: %v", d.cfg.Address, err)
	}
	s := d.set
	s.Mode = ModeSleep
	if err := d.dev.WriteReg(regCtrlMeas, s.Encode().CtrlMeas); err != nil {
		lg.Warnf("close 0x%02x: %v", d.cfg.Address, err)
	}
	return nil
}
