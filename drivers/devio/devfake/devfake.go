// Package devfake is a register-map I2C bus for driver tests.
//
// Each address owns 256 registers with an auto-incrementing pointer, as on
// the Bosch, Vishay and Maxim parts. Individual registers can be scripted so
// that successive reads return a sequence (status polling) or be replaced by
// a stream callback (FIFO data ports).
package devfake

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

// ErrNACK is what Fail-injected exchanges return by default.
var ErrNACK = errors.New("devfake: nack")

// Op is one recorded exchange.
type Op struct {
	Addr uint16
	W    []byte
	R    int
}

type key struct {
	addr uint16
	reg  byte
}

type device struct {
	regs [256]byte
	ptr  byte
}

// Bus implements drivers.I2C.
type Bus struct {
	mu      sync.Mutex
	devs    map[uint16]*device
	scripts map[key][]byte
	streams map[key]func(dst []byte)
	fail    map[key]error
	ops     []Op

	// OnWrite, if set, sees every register write after it lands.
	OnWrite func(addr uint16, reg byte, data []byte)
}

func New() *Bus {
	return &Bus{
		devs:    map[uint16]*device{},
		scripts: map[key][]byte{},
		streams: map[key]func([]byte){},
		fail:    map[key]error{},
	}
}

func (b *Bus) dev(addr uint16) *device {
	d, ok := b.devs[addr]
	if !ok {
		d = &device{}
		b.devs[addr] = d
	}
	return d
}

// Set loads consecutive registers starting at reg.
func (b *Bus) Set(addr uint16, reg byte, vals ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.dev(addr)
	for i, v := range vals {
		d.regs[reg+byte(i)] = v
	}
}

// Reg returns the current content of one register.
func (b *Bus) Reg(addr uint16, reg byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev(addr).regs[reg]
}

// Script makes successive reads that start at reg return seq[0], seq[1], ...
// in their first byte. The last value sticks.
func (b *Bus) Script(addr uint16, reg byte, seq ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[key{addr, reg}] = append([]byte(nil), seq...)
}

// Stream hands reads that start at reg to fn instead of the register map.
func (b *Bus) Stream(addr uint16, reg byte, fn func(dst []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[key{addr, reg}] = fn
}

// Fail makes every exchange addressed at reg fail with err (ErrNACK if nil).
func (b *Bus) Fail(addr uint16, reg byte, err error) {
	if err == nil {
		err = ErrNACK
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[key{addr, reg}] = err
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	b.ops = append(b.ops, Op{Addr: addr, W: append([]byte(nil), w...), R: len(r)})
	d := b.dev(addr)
	if len(w) > 0 {
		d.ptr = w[0]
	}
	if err, ok := b.fail[key{addr, d.ptr}]; ok {
		b.mu.Unlock()
		return err
	}
	var wrote []byte
	if len(w) > 1 {
		wrote = w[1:]
		for i, v := range wrote {
			d.regs[d.ptr+byte(i)] = v
		}
	}
	if len(r) > 0 {
		k := key{addr, d.ptr}
		if fn, ok := b.streams[k]; ok {
			b.mu.Unlock()
			fn(r)
			return nil
		}
		for i := range r {
			r[i] = d.regs[d.ptr+byte(i)]
		}
		if seq := b.scripts[k]; len(seq) > 0 {
			r[0] = seq[0]
			if len(seq) > 1 {
				b.scripts[k] = seq[1:]
			}
		}
	}
	hook := b.OnWrite
	reg := d.ptr
	b.mu.Unlock()
	if hook != nil && wrote != nil {
		hook(addr, reg, wrote)
	}
	return nil
}

// Ops returns a copy of the exchange log.
func (b *Bus) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// Writes returns the register writes sent to addr, register address first.
func (b *Bus) Writes(addr uint16) [][]byte {
	var out [][]byte
	for _, op := range b.Ops() {
		if op.Addr == addr && op.R == 0 && len(op.W) > 1 {
			out = append(out, op.W)
		}
	}
	return out
}

// WritesTo returns the data bytes of every write to reg.
func (b *Bus) WritesTo(addr uint16, reg byte) [][]byte {
	var out [][]byte
	for _, w := range b.Writes(addr) {
		if w[0] == reg {
			out = append(out, w[1:])
		}
	}
	return out
}

// Reads counts read exchanges that started at reg.
func (b *Bus) Reads(addr uint16, reg byte) int {
	n := 0
	for _, op := range b.Ops() {
		if op.Addr == addr && op.R > 0 && len(op.W) > 0 && op.W[0] == reg {
			n++
		}
	}
	return n
}

// Reset clears the exchange log.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.ops = nil
	b.mu.Unlock()
}
