// Package devio is the register transport shared by the HAT sensor drivers.
//
// A Dev binds one drivers.I2C bus to one 7-bit device address and offers the
// two exchanges every driver needs:
//
//	d.WriteReg(reg, v...)    // single register address followed by data
//	d.ReadReg(reg, buf)      // register address write, repeated-start read
//
// Transport failures are returned wrapped in *BusError and match ErrTransport
// under errors.Is. Nothing is retried here.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus. Serialising access between
// devices sharing one bus is the transport's job.
package devio

import (
	"tinygo.org/x/drivers"
)

// maxInlineWrite covers every configuration burst used by the HAT drivers.
const maxInlineWrite = 16

// Dev is one addressed device on a shared bus. Not safe for concurrent use.
type Dev struct {
	bus  drivers.I2C
	Addr uint16

	w [maxInlineWrite + 1]byte
	r [2]byte
}

// New binds bus and addr. It does not touch the device.
func New(bus drivers.I2C, addr uint16) *Dev {
	return &Dev{bus: bus, Addr: addr}
}

// Bus returns the underlying transport.
func (d *Dev) Bus() drivers.I2C { return d.bus }

// Write sends b as-is. b[0] is normally a register address.
func (d *Dev) Write(b []byte) error {
	if err := d.bus.Tx(d.Addr, b, nil); err != nil {
		var reg byte
		if len(b) > 0 {
			reg = b[0]
		}
		return &BusError{Addr: d.Addr, Reg: reg, Op: "write", Err: err}
	}
	return nil
}

// WriteReg writes data to consecutive registers starting at reg.
func (d *Dev) WriteReg(reg byte, data ...byte) error {
	var w []byte
	if len(data) <= maxInlineWrite {
		w = d.w[:len(data)+1]
	} else {
		w = make([]byte, len(data)+1)
	}
	w[0] = reg
	copy(w[1:], data)
	if err := d.bus.Tx(d.Addr, w, nil); err != nil {
		return &BusError{Addr: d.Addr, Reg: reg, Op: "write", Err: err}
	}
	return nil
}

// ReadReg fills dst from consecutive registers starting at reg.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	d.w[0] = reg
	if err := d.bus.Tx(d.Addr, d.w[:1], dst); err != nil {
		return &BusError{Addr: d.Addr, Reg: reg, Op: "read", Err: err}
	}
	return nil
}

// ReadU8 reads one register.
func (d *Dev) ReadU8(reg byte) (byte, error) {
	if err := d.ReadReg(reg, d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

// ReadU16LE reads a little-endian word at reg, reg+1.
func (d *Dev) ReadU16LE(reg byte) (uint16, error) {
	if err := d.ReadReg(reg, d.r[:2]); err != nil {
		return 0, err
	}
	return U16LE(d.r[:]), nil
}

// ReadU16BE reads a big-endian word at reg, reg+1.
func (d *Dev) ReadU16BE(reg byte) (uint16, error) {
	if err := d.ReadReg(reg, d.r[:2]); err != nil {
		return 0, err
	}
	return U16BE(d.r[:]), nil
}

// UpdateReg does a read-modify-write of the bits selected by mask.
func (d *Dev) UpdateReg(reg, mask, val byte) error {
	cur, err := d.ReadU8(reg)
	if err != nil {
		return err
	}
	return d.WriteReg(reg, (cur&^mask)|(val&mask))
}
