// Package max30100 drives the Maxim MAX30100 pulse oximeter.
//
// Samples are drained from the 16-deep FIFO using the hardware pointers;
// heart rate and SpO2 are not derived beyond a simple IR level estimate.
package max30100

import (
	"errors"
	"time"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
)

var lg = logger.NewPackageLogger("max30100", logger.InfoLevel)

// ErrEmpty is returned when the FIFO holds no samples.
var ErrEmpty = errors.New("max30100: fifo empty")

// HeartRateDivisor scales the average IR level into the estimate.
const HeartRateDivisor = 200

// Sample is one FIFO entry.
type Sample struct {
	IR, Red uint16
}

// Config is optional; zero values take defaults.
type Config struct {
	Settings     *Settings
	GateAttempts int
	GateInterval time.Duration
	PollAttempts int
	PollInterval time.Duration
}

func (c *Config) defaults() {
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

// Device is one MAX30100.
type Device struct {
	dev  *devio.Dev
	gate *devio.Gate
	cfg  Config
	set  Settings
	fifo [fifoDepth * bytesPerSample]byte
}

// New binds the device and configures it in the background.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.defaults()
	d := &Device{dev: devio.New(bus, Address), gate: devio.NewGate(), cfg: cfg}
	d.gate.Start(d.init)
	return d
}

func (d *Device) init() error {
	id, err := d.dev.ReadU8(regPartID)
	if err != nil {
		return err
	}
	if id != PartID {
		return &devio.IDError{Want: PartID, Got: id}
	}
	s := DefaultSettings()
	if d.cfg.Settings != nil {
		s = *d.cfg.Settings
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regIntEnable, 0x00); err != nil {
		return err
	}
	return d.apply(s)
}

// apply writes the mode, clears the FIFO pointers, then writes SpO2 and LED
// configuration.
func (d *Device) apply(s Settings) error {
	w := s.Encode()
	if err := d.dev.WriteReg(regMode, w.Mode); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regFIFOWr, 0, 0, 0); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regSpO2, w.SpO2); err != nil {
		return err
	}
	if err := d.dev.WriteReg(regLED, w.LED); err != nil {
		return err
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

// Configure applies s and reports success.
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

// fifoCount returns the number of unread samples. A non-zero overflow
// counter means the FIFO is full.
func fifoCount(wr, ovf, rd byte) int {
	if ovf != 0 {
		return fifoDepth
	}
	return int((wr - rd) & 0x0F)
}

// ReadSamples drains the FIFO.
func (d *Device) ReadSamples() ([]Sample, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return nil, devio.ErrNotInitialised
	}
	var ptr [3]byte
	if err := d.dev.ReadReg(regFIFOWr, ptr[:]); err != nil {
		return nil, err
	}
	n := fifoCount(ptr[0], ptr[1], ptr[2])
	if n == 0 {
		return nil, nil
	}
	buf := d.fifo[:n*bytesPerSample]
	if err := d.dev.ReadReg(regFIFOData, buf); err != nil {
		return nil, err
	}
	out := make([]Sample, n)
	for i := range out {
		b := buf[i*bytesPerSample:]
		out[i] = Sample{IR: devio.U16BE(b[0:2]), Red: devio.U16BE(b[2:4])}
	}
	return out, nil
}

// Averages is the mean of one FIFO drain.
type Averages struct {
	IR, Red float64
	N       int
}

// ReadAverages drains the FIFO and averages it. ErrEmpty when no samples
// were waiting.
func (d *Device) ReadAverages() (Averages, error) {
	s, err := d.ReadSamples()
	if err != nil {
		return Averages{}, err
	}
	if len(s) == 0 {
		return Averages{}, ErrEmpty
	}
	var ir, red float64
	for _, v := range s {
		ir += float64(v.IR)
		red += float64(v.Red)
	}
	n := float64(len(s))
	return Averages{IR: ir / n, Red: red / n, N: len(s)}, nil
}

// ReadHeartRateEstimate is the average IR level divided by
// HeartRateDivisor. It tracks perfusion, not beats per minute.
func (d *Device) ReadHeartRateEstimate() (float64, error) {
	a, err := d.ReadAverages()
	if err != nil {
		return 0, err
	}
	return a.IR / HeartRateDivisor, nil
}

// ReadTemperature runs one die temperature conversion, in degrees C.
func (d *Device) ReadTemperature() (float64, error) {
	if !d.gate.AwaitReady(d.cfg.GateAttempts, d.cfg.GateInterval) {
		return 0, devio.ErrNotInitialised
	}
	if err := d.dev.UpdateReg(regMode, modeTempEn, modeTempEn); err != nil {
		return 0, err
	}
	if err := d.dev.PollBitsClear(regMode, modeTempEn, d.cfg.PollAttempts, d.cfg.PollInterval); err != nil {
		return 0, err
	}
	var t [2]byte
	if err := d.dev.ReadReg(regTempInt, t[:]); err != nil {
		return 0, err
	}
	return float64(int8(t[0])) + float64(t[1]&0x0F)*0.0625, nil
}

// Close turns both LEDs off and shuts the part down.
func (d *Device) Close() error {
	if err := d.gate.Wait(); errors.Is(err, devio.ErrUnexpectedID) {
		return nil // another part answers at this address
	} else if err != nil {
		lg.Debugf("close after failed init: %v", err)
	}
	if err := d.dev.WriteReg(regLED, 0x00); err != nil {
		lg.Warnf("close: leds: %v", err)
	}
	if err := d.dev.WriteReg(regMode, modeShutdown|byte(ModeHeartRate)); err != nil {
		lg.Warnf("close: shutdown: %v", err)
	}
	return nil
}
