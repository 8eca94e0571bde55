// services/hal/internal/platform/embd.go

package platform

import (
	"sync"

	"github.com/d2r2/go-logger"
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi" // registers the Raspberry Pi host descriptor

	"iothat-go/services/hal/internal/halcore"
)

var lg = logger.NewPackageLogger("platform", logger.InfoLevel)

// ---- I²C via embd ----

// EmbdI2C adapts an embd.I2CBus to drivers.I2C.
//
// embd has no combined write-read, so a multi-byte write followed by a read
// becomes two transactions. Every HAT device uses the register-pointer form
// (one byte written then a read), which maps onto ReadFromReg.
type EmbdI2C struct {
	bus embd.I2CBus
}

// OpenEmbdI2C opens /dev/i2c-<n>.
func OpenEmbdI2C(n int) (*EmbdI2C, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, err
	}
	return &EmbdI2C{bus: embd.NewI2CBus(byte(n))}, nil
}

func (e *EmbdI2C) Tx(addr uint16, w, r []byte) error {
	a := byte(addr)
	switch {
	case len(r) == 0:
		return e.bus.WriteBytes(a, w)
	case len(w) == 1:
		return e.bus.ReadFromReg(a, w[0], r)
	case len(w) > 1:
		if err := e.bus.WriteBytes(a, w); err != nil {
			return err
		}
	}
	b, err := e.bus.ReadBytes(a, len(r))
	if err != nil {
		return err
	}
	copy(r, b)
	return nil
}

func (e *EmbdI2C) Close() error { return e.bus.Close() }

// ---- GPIO via embd (sysfs, with edge callbacks) ----

type embdPinFactory struct {
	mu   sync.Mutex
	pins map[int]*embdPin
}

// OpenEmbdGPIO initialises the embd GPIO driver.
func OpenEmbdGPIO() (halcore.PinFactory, func() error, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, nil, err
	}
	f := &embdPinFactory{pins: map[int]*embdPin{}}
	return f, f.close, nil
}

func (f *embdPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n]; ok {
		return p, true
	}
	dp, err := embd.NewDigitalPin(n)
	if err != nil {
		lg.Warnf("embd pin %d: %v", n, err)
		return nil, false
	}
	p := &embdPin{p: dp}
	f.pins[n] = p
	return p, true
}

func (f *embdPinFactory) close() error {
	f.mu.Lock()
	for _, p := range f.pins {
		_ = p.p.Close()
	}
	f.pins = map[int]*embdPin{}
	f.mu.Unlock()
	return embd.CloseGPIO()
}

type embdPin struct {
	p embd.DigitalPin
}

func (e *embdPin) ConfigureInput(pull halcore.Pull) error {
	if err := e.p.SetDirection(embd.In); err != nil {
		return err
	}
	var err error
	switch pull {
	case halcore.PullUp:
		err = e.p.PullUp()
	case halcore.PullDown:
		err = e.p.PullDown()
	}
	if err != nil {
		// sysfs cannot set pulls; the HAT has external resistors.
		lg.Debugf("pin %d pull: %v", e.p.N(), err)
	}
	return nil
}

func (e *embdPin) ConfigureOutput(initial bool) error {
	if err := e.p.SetDirection(embd.Out); err != nil {
		return err
	}
	e.Set(initial)
	return nil
}

func (e *embdPin) Set(level bool) {
	v := embd.Low
	if level {
		v = embd.High
	}
	if err := e.p.Write(v); err != nil {
		lg.Warnf("pin %d write: %v", e.p.N(), err)
	}
}

func (e *embdPin) Get() bool {
	v, err := e.p.Read()
	if err != nil {
		lg.Warnf("pin %d read: %v", e.p.N(), err)
	}
	return v == embd.High
}

func (e *embdPin) Toggle()     { e.Set(!e.Get()) }
func (e *embdPin) Number() int { return e.p.N() }

func (e *embdPin) SetIRQ(edge halcore.Edge, handler func()) error {
	_ = e.p.StopWatching()
	if edge == halcore.EdgeNone || handler == nil {
		return nil
	}
	return e.p.Watch(toEmbdEdge(edge), func(embd.DigitalPin) { handler() })
}

func (e *embdPin) ClearIRQ() error { return e.p.StopWatching() }

func toEmbdEdge(e halcore.Edge) embd.Edge {
	switch e {
	case halcore.EdgeRising:
		return embd.EdgeRising
	case halcore.EdgeFalling:
		return embd.EdgeFalling
	case halcore.EdgeBoth:
		return embd.EdgeBoth
	default:
		return embd.EdgeNone
	}
}
