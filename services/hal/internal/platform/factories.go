// services/hal/internal/platform/factories.go

package platform

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"tinygo.org/x/drivers"

	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/metrics"
	"iothat-go/types"
)

// Backend names accepted by OpenI2C and OpenPins.
const (
	BackendPeriph = "periph"
	BackendEmbd   = "embd"
	BackendRPIO   = "rpio"
	BackendFake   = "fake"
)

var ErrUnknownBackend = errors.New("platform: unknown backend")

// I2CFactory maps configured bus ids to opened buses.
type I2CFactory struct {
	buses   map[string]drivers.I2C
	closers []io.Closer
}

func (f *I2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// Close releases every bus the factory opened.
func (f *I2CFactory) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Add binds bus under id, serialised and instrumented.
func (f *I2CFactory) Add(id string, bus drivers.I2C, m *metrics.Metrics) {
	if f.buses == nil {
		f.buses = map[string]drivers.I2C{}
	}
	f.buses[id] = NewLockedI2C(m.InstrumentI2C(id, bus))
}

// OpenI2C opens every configured bus with the chosen backend. With no
// buses configured it opens "i2c1" on /dev/i2c-1, which is where the HAT
// sits.
func OpenI2C(backend string, cfg []types.I2CBus, m *metrics.Metrics) (*I2CFactory, error) {
	if len(cfg) == 0 {
		cfg = []types.I2CBus{{ID: "i2c1", Number: 1}}
	}
	f := &I2CFactory{}
	for _, c := range cfg {
		var (
			bus drivers.I2C
			err error
		)
		switch backend {
		case BackendPeriph:
			name := c.Name
			if name == "" {
				name = strconv.Itoa(c.Number)
			}
			var bc io.Closer
			bus, bc, err = openPeriph(name)
			if bc != nil {
				f.closers = append(f.closers, bc)
			}
		case BackendEmbd:
			var e *EmbdI2C
			e, err = OpenEmbdI2C(c.Number)
			if e != nil {
				bus = e
				f.closers = append(f.closers, e)
			}
		case BackendFake:
			bus = SimulatedHAT()
		default:
			err = fmt.Errorf("%w %q", ErrUnknownBackend, backend)
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("i2c %s: %w", c.ID, err)
		}
		lg.Debugf("i2c %s opened via %s", c.ID, backend)
		f.Add(c.ID, bus, m)
	}
	return f, nil
}

func openPeriph(name string) (drivers.I2C, io.Closer, error) {
	b, err := OpenPeriphI2C(name)
	if err != nil {
		return nil, nil, err
	}
	return b, b, nil
}

// OpenPins returns a pin factory for the chosen backend and its close func.
func OpenPins(backend string) (halcore.PinFactory, func() error, error) {
	switch backend {
	case BackendRPIO:
		return OpenRPIO()
	case BackendEmbd:
		return OpenEmbdGPIO()
	case BackendFake:
		return NewHostPinFactory(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
	}
}
