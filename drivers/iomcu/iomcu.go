// Package iomcu talks to the HAT's IO co-processor: four analog inputs and
// an NEC infrared transceiver.
package iomcu

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/d2r2/go-logger"
	"tinygo.org/x/drivers"

	"iothat-go/drivers/devio"
	"iothat-go/x/mathx"
)

var lg = logger.NewPackageLogger("iomcu", logger.InfoLevel)

// Address is fixed.
const Address = 0x28

const (
	regIRReception = 0x02
	regAnalog1     = 0x10 // channels 1..4 at 0x10..0x13
	regIRRead      = 0x30
	regIRWrite     = 0x40
)

// Analog scaling: the converter is 10 bit, the top bit of the word is a flag.
const (
	analogMask     = 0x7FFF
	analogFullCode = 1023
)

// Channels is the number of analog inputs.
const Channels = 4

// Code is one 4-byte NEC frame.
type Code [4]byte

func (c Code) String() string { return fmt.Sprintf("%02x%02x%02x%02x", c[0], c[1], c[2], c[3]) }

// ParseCode reads the 8 hex digit form produced by String.
func ParseCode(s string) (Code, error) {
	var c Code
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(c) {
		return Code{}, fmt.Errorf("iomcu: ir code %q: %w", s, devio.ErrInvalidParams)
	}
	copy(c[:], b)
	return c, nil
}

// Device is the co-processor. Methods are safe for concurrent use since the
// analog and IR functions are usually owned by different callers.
type Device struct {
	mu  sync.Mutex
	dev *devio.Dev
	rx  bool
}

// New binds the co-processor. It does not touch it.
func New(bus drivers.I2C) *Device {
	return &Device{dev: devio.New(bus, Address)}
}

// ScaleAnalog converts a raw word to 0..1.
func ScaleAnalog(raw uint16) float64 {
	return mathx.Clamp(float64(raw&analogMask)/analogFullCode, 0, 1)
}

func analogReg(ch int) (byte, error) {
	if ch < 1 || ch > Channels {
		return 0, fmt.Errorf("iomcu: analog channel %d: %w", ch, devio.ErrInvalidParams)
	}
	return regAnalog1 + byte(ch-1), nil
}

// ReadAnalogRaw returns the raw word of channel ch (1..4).
func (d *Device) ReadAnalogRaw(ch int) (uint16, error) {
	reg, err := analogReg(ch)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.ReadU16LE(reg)
}

// ReadAnalog returns channel ch scaled to 0..1.
func (d *Device) ReadAnalog(ch int) (float64, error) {
	raw, err := d.ReadAnalogRaw(ch)
	if err != nil {
		return 0, err
	}
	return ScaleAnalog(raw), nil
}

// ReadAnalogAverage averages n raw reads before scaling.
func (d *Device) ReadAnalogAverage(ch, n int) (float64, error) {
	if n <= 1 {
		return d.ReadAnalog(ch)
	}
	vals := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		raw, err := d.ReadAnalogRaw(ch)
		if err != nil {
			return 0, err
		}
		vals = append(vals, raw&analogMask)
	}
	return mathx.Clamp(mathx.Mean(vals)/analogFullCode, 0, 1), nil
}

// SetIRReception enables or disables the receiver. The last code is read
// first to clear a pending receive interrupt.
func (d *Device) SetIRReception(enabled bool) error {
	if _, err := d.LastIRCode(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var v byte
	if enabled {
		v = 1
	}
	if err := d.dev.WriteReg(regIRReception, v); err != nil {
		return err
	}
	d.rx = enabled
	return nil
}

// IRReception reports the last state set.
func (d *Device) IRReception() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rx
}

// LastIRCode reads the most recently received frame. Call it after a rising
// edge on the IR interrupt line.
func (d *Device) LastIRCode() (Code, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var c Code
	if err := d.dev.ReadReg(regIRRead, c[:]); err != nil {
		return Code{}, err
	}
	return c, nil
}

// SendIRCode transmits one frame.
func (d *Device) SendIRCode(c Code) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.WriteReg(regIRWrite, c[:]...)
}

// Close disables IR reception. Failures are logged.
func (d *Device) Close() error {
	if err := d.SetIRReception(false); err != nil {
		lg.Warnf("close: %v", err)
	}
	return nil
}
