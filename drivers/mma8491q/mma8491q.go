// Package mma8491q drives the NXP MMA8491Q accelerometer and tilt sensor.
//
// The part is powered only while its enable line is high. Every read raises
// the line, waits for the conversion and drops it again.
package mma8491q

import (
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/hatio"
)

var lg = logger.NewPackageLogger("mma8491q", logger.InfoLevel)

// Address is fixed.
const Address = 0x55

const (
	regStatus = 0x00
	regOutX   = 0x01 // X, Y, Z MSB/LSB pairs

	statusZYXDR = 0x08
)

// WakeDelay is the enable-to-first-sample time.
const WakeDelay = time.Millisecond

var sleep = time.Sleep

// Config binds the control lines. Enable and Tilt may be nil when the lines
// are not wired.
type Config struct {
	Enable hatio.OutputPin
	Tilt   hatio.InputPin

	PollAttempts int
	PollInterval time.Duration
}

func (c *Config) defaults() {
	if c.PollAttempts <= 0 {
		c.PollAttempts = devio.DefaultPollAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = devio.DefaultPollInterval
	}
}

// Device is one MMA8491Q.
type Device struct {
	dev *devio.Dev
	cfg Config
	buf [6]byte
}

// New binds the device and drives enable low.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.defaults()
	d := &Device{dev: devio.New(bus, Address), cfg: cfg}
	d.enable(false)
	return d
}

func (d *Device) enable(on bool) {
	if d.cfg.Enable != nil {
		d.cfg.Enable.Set(on)
	}
}

// Axes is one acceleration sample in g.
type Axes struct {
	X, Y, Z float64
}

// ToG converts a 14-bit two's complement sample to g.
func ToG(raw uint16) float64 {
	v := int16(raw<<2) >> 2
	return float64(v) / 1024
}

// sample14 extracts the 14-bit value from an MSB/LSB pair.
func sample14(msb, lsb byte) uint16 {
	return uint16(msb)<<6 | uint16(lsb)>>2
}

// ReadRaw returns the three 14-bit samples from one conversion.
func (d *Device) ReadRaw() (x, y, z uint16, err error) {
	d.enable(true)
	defer d.enable(false)
	sleep(WakeDelay)

	if err = d.dev.PollBitsSet(regStatus, statusZYXDR, d.cfg.PollAttempts, d.cfg.PollInterval); err != nil {
		return 0, 0, 0, err
	}
	if err = d.dev.ReadReg(regOutX, d.buf[:]); err != nil {
		return 0, 0, 0, err
	}
	b := d.buf
	return sample14(b[0], b[1]), sample14(b[2], b[3]), sample14(b[4], b[5]), nil
}

// Read returns all three axes in g.
func (d *Device) Read() (Axes, error) {
	x, y, z, err := d.ReadRaw()
	if err != nil {
		return Axes{}, err
	}
	return Axes{X: ToG(x), Y: ToG(y), Z: ToG(z)}, nil
}

func (d *Device) ReadX() (float64, error) {
	a, err := d.Read()
	return a.X, err
}

func (d *Device) ReadY() (float64, error) {
	a, err := d.Read()
	return a.Y, err
}

func (d *Device) ReadZ() (float64, error) {
	a, err := d.Read()
	return a.Z, err
}

// ReadTilt samples the tilt output, which is only valid while enabled.
// It reports true when acceleration exceeds 0.688 g or the board leans past
// 45 degrees.
func (d *Device) ReadTilt() (bool, error) {
	if d.cfg.Tilt == nil {
		return false, devio.ErrInvalidParams
	}
	d.enable(true)
	sleep(WakeDelay)
	level := d.cfg.Tilt.Get()
	d.enable(false)
	in, _ := hatio.Lookup(hatio.KindTilt, 1)
	return in.Decode(level).State, nil
}

// Close leaves the part powered down.
func (d *Device) Close() error {
	d.enable(false)
	lg.Debug("enable low")
	return nil
}

// TiltTracker turns tilt samples into events, one per change.
type TiltTracker struct {
	last  bool
	valid bool
}

// Update records state and returns an event when it differs from the
// previous sample. The first sample only reports when tilted.
func (t *TiltTracker) Update(state bool) (hatio.Event, bool) {
	changed := t.valid && state != t.last || !t.valid && state
	t.last, t.valid = state, true
	if !changed {
		return hatio.Event{}, false
	}
	return hatio.Event{Kind: hatio.KindTilt, Channel: 1, State: state}, true
}
