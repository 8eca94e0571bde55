// Package apds9960 drives the Broadcom APDS-9960 ambient light, colour and
// proximity sensor. Gesture data is not decoded.
package apds9960

import (
	"errors"
	"slices"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
)

var lg = logger.NewPackageLogger("apds9960", logger.InfoLevel)

// Mode selects the engines that run.
type Mode struct {
	Ambient   bool // ambient and RGB light
	Proximity bool
	Gesture   bool
}

// DefaultMode runs light and proximity.
func DefaultMode() Mode { return Mode{Ambient: true, Proximity: true} }

// Encode returns the ENABLE value. Power is on when any engine runs and the
// wait timer is always enabled.
func (m Mode) Encode() byte {
	b := byte(enWEN)
	if m.Ambient {
		b |= enPON | enAEN
	}
	if m.Proximity {
		b |= enPON | enPEN
	}
	if m.Gesture {
		b |= enPON | enGEN
	}
	return b
}

// DecodeMode is the inverse of Encode.
func DecodeMode(b byte) Mode {
	return Mode{Ambient: b&enAEN != 0, Proximity: b&enPEN != 0, Gesture: b&enGEN != 0}
}

// Config is optional; zero values take defaults.
type Config struct {
	Mode         *Mode
	GateAttempts int
	GateInterval time.Duration
}

// RGB is one colour sample in raw counts.
type RGB struct {
	R, G, B uint16
}

// Device is one APDS-9960.
type Device struct {
	dev  *devio.Dev
	gate *devio.Gate
	cfg  Config
	mode Mode
	buf  [8]byte
}

// New binds the device and runs the init sequence in the background.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.GateAttempts <= 0 {
		cfg.GateAttempts = devio.DefaultGateAttempts
	}
	if cfg.GateInterval <= 0 {
		cfg.GateInterval = devio.DefaultGateInterval
	}
	d := &Device{dev: devio.New(bus, Address), gate: devio.NewGate(), cfg: cfg}
	d.gate.Start(d.init)
	return d
}

func (d *Device) init() error {
	id, err := d.dev.ReadU8(regID)
	if err != nil {
		return err
	}
	if !slices.Contains(chipIDs, id) {
		return &devio.IDError{Want: chipIDs[0], Got: id}
	}
	for _, w := range initSequence {
		if err := d.dev.WriteReg(w[0], w[1]); err != nil {
			return err
		}
	}
	m := DefaultMode()
	if d.cfg.Mode != nil {
		m = *d.cfg.Mode
	}
	return d.setMode(m)
}

func (d *Device) setMode(m Mode) error {
	if err := d.dev.WriteReg(regEnable, m.Encode()); err != nil {
		return err
	}
	d.mode = m
	return nil
}

func (d *Device) State() devio.State { return d.gate.State() }

func (d *Device) InitErr() error { return d.gate.Err() }

func (d *Device) Mode() Mode {
	if !d.gate.Ready() {
		return Mode{}
	}
	return d.mode
}

// SetMode switches engines on or off and reports success.
func (d *Device) SetMode(m Mode) bool {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		lg.Warnf("set mode: not ready (%v)", d.gate.Err())
		return false
	}
	if err := d.setMode(m); err != nil {
		lg.Warnf("set mode: %v", err)
		return false
	}
	return true
}

func (d *Device) ready() error {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return devio.ErrNotInitialised
	}
	return nil
}

// ReadAmbient returns the clear channel count.
func (d *Device) ReadAmbient() (uint16, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.dev.ReadU16LE(regCDataL)
}

// ReadRGB returns the colour channels from one burst.
func (d *Device) ReadRGB() (RGB, error) {
	if err := d.ready(); err != nil {
		return RGB{}, err
	}
	if err := d.dev.ReadReg(regCDataL, d.buf[:]); err != nil {
		return RGB{}, err
	}
	b := d.buf[:]
	return RGB{
		R: devio.U16LE(b[2:]),
		G: devio.U16LE(b[4:]),
		B: devio.U16LE(b[6:]),
	}, nil
}

// ReadProximity returns the proximity count, higher is nearer.
func (d *Device) ReadProximity() (uint8, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	return d.dev.ReadU8(regPData)
}

// Close turns every engine and the oscillator off.
func (d *Device) Close() error {
	if err := d.gate.Wait(); errors.Is(err, devio.ErrUnexpectedID) {
		return nil // another part answers at this address
	} else if err != nil {
		lg.Debugf("close after failed init: %v", err)
	}
	if err := d.dev.WriteReg(regEnable, 0x00); err != nil {
		lg.Warnf("close: %v", err)
	}
	return nil
}
