// services/hal/internal/platform/fake.go

package platform

import (
	"sync"

	"iothat-go/drivers/devio/devfake"
	"iothat-go/services/hal/internal/halcore"
)

// ----------------------------- I²C (simulated HAT) ---------------------------

// SimulatedHAT returns a register-map bus answering at every HAT address
// with a valid identity, so the HAL can be exercised off-target. The BME280
// carries the datasheet trimming values and a sample that compensates to
// 25.08 °C and 100653 Pa.
func SimulatedHAT() *devfake.Bus {
	b := devfake.New()
	b.Set(0x77, 0xD0, 0x60) // BME280 id
	b.Set(0x77, 0x88,
		0x70, 0x6B, 0x43, 0x67, 0x18, 0xFC, // T1..T3
		0x7D, 0x8E, 0x43, 0xD6, 0xD0, 0x0B, 0x27, 0x0B, 0x8C, 0x00, // P1..P5
		0xF9, 0xFF, 0x8C, 0x3C, 0xF8, 0xC6, 0x70, 0x17, // P6..P9
	)
	b.Set(0x77, 0xA1, 75)                                     // H1
	b.Set(0x77, 0xE1, 0x6A, 0x01, 0x00, 0x13, 0x29, 0x03, 30) // H2..H6
	b.Set(0x77, 0xF7, 0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00, 0x66, 0x00)
	b.Set(0x76, 0xD0, 0x61)       // BME680 id
	b.Set(0x10, 0x0C, 0x26)       // VEML6075 id
	b.Set(0x39, 0x92, 0xAB)       // APDS9960 id
	b.Set(0x57, 0xFF, 0x11)       // MAX30100 part id
	b.Set(0x55, 0x00, 0x08)       // MMA8491Q ZYXDR
	b.Set(0x28, 0x10, 0x00, 0x02) // IO MCU analog 1 = 512
	return b
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements IRQPin in memory. Set fires the registered handler
// when the level change matches the armed edge.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	output  bool
	pull    halcore.Pull
	irqEdge halcore.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.output = false
	p.pull = pull
	if pull == halcore.PullUp {
		p.level = true
	}
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.output = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	edge := edgeFrom(p.level, level)
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edge)
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

// Output reports whether the pin was last configured as an output.
func (p *FakePin) Output() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.output
}

// Pull reports the last input pull setting.
func (p *FakePin) Pull() halcore.Pull {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pull
}

func (p *FakePin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error { return p.SetIRQ(halcore.EdgeNone, nil) }

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	if seen == halcore.EdgeNone {
		return false
	}
	return cfg == halcore.EdgeBoth || cfg == seen
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func NewHostPinFactory() *HostPinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}

func (f *HostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	return f.Pin(n), true
}

// Pin exposes the underlying *FakePin, creating it on first use, so tests
// can drive edges.
func (f *HostPinFactory) Pin(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p
}
