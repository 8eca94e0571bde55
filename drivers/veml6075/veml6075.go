// Package veml6075 drives the Vishay VEML6075 UVA/UVB sensor.
package veml6075

import (
	"errors"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
)

var lg = logger.NewPackageLogger("veml6075", logger.InfoLevel)

// ErrConfigMismatch is returned when UV_CONF does not read back as written.
var ErrConfigMismatch = errors.New("veml6075: configuration read-back mismatch")

// Config controls timing and compensation. All fields are optional.
type Config struct {
	Settings     *Settings
	Coefficients *Coefficients
	// Gate budget. Default 1000 x 1 ms.
	GateAttempts int
	GateInterval time.Duration
	// Trigger poll budget in ActiveForce mode, on top of the integration
	// time. Default 500 x 1 ms.
	PollAttempts int
	PollInterval time.Duration
}

func (c *Config) defaults() {
	if c.GateAttempts <= 0 {
		c.GateAttempts = 1000
	}
	if c.GateInterval <= 0 {
		c.GateInterval = time.Millisecond
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = devio.DefaultPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = devio.DefaultPollInterval
	}
}

// Device is one VEML6075.
type Device struct {
	dev  *devio.Dev
	gate *devio.Gate
	cfg  Config
	coef Coefficients
	set  Settings
}

// New binds the device and applies the settings in the background.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.defaults()
	d := &Device{
		dev:  devio.New(bus, Address),
		gate: devio.NewGate(),
		cfg:  cfg,
		coef: DefaultCoefficients(),
	}
	if cfg.Coefficients != nil {
		d.coef = *cfg.Coefficients
	}
	d.gate.Start(d.init)
	return d
}

func (d *Device) init() error {
	id, err := d.dev.ReadU16LE(regID)
	if err != nil {
		return err
	}
	if byte(id) != DeviceID {
		return &devio.IDError{Want: DeviceID, Got: byte(id)}
	}
	s := DefaultSettings()
	if d.cfg.Settings != nil {
		s = *d.cfg.Settings
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return d.apply(s)
}

// apply writes UV_CONF and checks the read-back, ignoring the self-clearing
// trigger bit.
func (d *Device) apply(s Settings) error {
	conf := s.Encode()
	if err := d.dev.WriteReg(regConf, conf, 0x00); err != nil {
		return err
	}
	got, err := d.dev.ReadU16LE(regConf)
	if err != nil {
		return err
	}
	if byte(got) != conf&^confTrig {
		lg.Debugf("uv_conf read back 0x%02x, wrote 0x%02x", byte(got), conf)
		return ErrConfigMismatch
	}
	d.set = s
	return nil
}

func (d *Device) State() devio.State { return d.gate.State() }

func (d *Device) InitErr() error { return d.gate.Err() }

func (d *Device) Settings() Settings {
	if !d.gate.Ready() {
		return Settings{}
	}
	return d.set
}

func (d *Device) Coefficients() Coefficients { return d.coef }

// Configure writes s and reports whether it was accepted.
func (d *Device) Configure(s Settings) bool {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		lg.Warnf("configure: not ready (%v)", d.gate.Err())
		return false
	}
	if err := s.Validate(); err != nil {
		lg.Warnf("configure: %v", err)
		return false
	}
	if err := d.apply(s); err != nil {
		lg.Warnf("configure: %v", err)
		return false
	}
	return true
}

// Trigger starts one conversion in active force mode.
func (d *Device) Trigger() error {
	conf, err := d.dev.ReadU16LE(regConf)
	if err != nil {
		return err
	}
	return d.dev.WriteReg(regConf, byte(conf)|confTrig, 0x00)
}

// ReadRaw returns the five channels. In active force mode it triggers a
// conversion and waits for the trigger bit to clear.
func (d *Device) ReadRaw() (Raw, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return Raw{}, devio.ErrNotInitialised
	}
	if d.set.ActiveForce {
		if err := d.Trigger(); err != nil {
			return Raw{}, err
		}
		attempts := d.cfg.PollAttempts + int(d.set.IntegrationTime.Duration()/d.cfg.PollInterval)
		err := d.dev.PollBitsClear(regConf, confTrig, attempts, d.cfg.PollInterval)
		if err != nil {
			return Raw{}, err
		}
	}
	var r Raw
	for _, ch := range []struct {
		reg byte
		dst *uint16
	}{
		{regUVA, &r.UVA},
		{regDummy, &r.Dummy},
		{regUVB, &r.UVB},
		{regComp1, &r.Comp1},
		{regComp2, &r.Comp2},
	} {
		v, err := d.dev.ReadU16LE(ch.reg)
		if err != nil {
			return Raw{}, err
		}
		*ch.dst = v
	}
	return r, nil
}

func (d *Device) read(f func(Coefficients, Raw) float64) (float64, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	return f(d.coef, r), nil
}

// ReadUVA returns the compensated UVA count.
func (d *Device) ReadUVA() (float64, error) { return d.read(Coefficients.UVA) }

// ReadUVB returns the compensated UVB count.
func (d *Device) ReadUVB() (float64, error) { return d.read(Coefficients.UVB) }

func (d *Device) ReadUVIndexA() (float64, error) { return d.read(Coefficients.UVIndexA) }

func (d *Device) ReadUVIndexB() (float64, error) { return d.read(Coefficients.UVIndexB) }

// ReadAverageUVIndex returns the dark-corrected mean index, never negative.
func (d *Device) ReadAverageUVIndex() (float64, error) {
	return d.read(Coefficients.AverageUVIndex)
}

// Close shuts the sensor down. Failures are logged, not returned.
func (d *Device) Close() error {
	if err := d.gate.Wait(); errors.Is(err, devio.ErrUnexpectedID) {
		return nil // another part answers at this address
	} else if err != nil {
		lg.Debugf("close after failed init: %v", err)
	}
	if err := d.dev.WriteReg(regConf, d.set.Encode()|confSD, 0x00); err != nil {
		lg.Warnf("close: %v", err)
	}
	return nil
}
