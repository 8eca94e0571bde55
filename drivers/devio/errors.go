package devio

import (
	"errors"
	"fmt"
)

// Errors shared by the HAT drivers.
var (
	// ErrTransport matches any *BusError.
	ErrTransport = errors.New("devio: transport failure")
	// ErrNotInitialised is returned when the init gate did not open in time.
	ErrNotInitialised = errors.New("devio: device not initialised")
	// ErrMeasureTimeout is returned when a busy-poll exhausts its budget.
	ErrMeasureTimeout = errors.New("devio: measurement timeout")
	// ErrBusy is returned by split-phase collectors while the device is converting.
	ErrBusy = errors.New("devio: measurement in progress")
	// ErrUnexpectedID is returned when a chip-id register does not match.
	ErrUnexpectedID = errors.New("devio: unexpected chip id")
	// ErrInvalidParams flags an option outside its documented range.
	ErrInvalidParams = errors.New("devio: invalid parameters")
)

// BusError records a failed exchange.
type BusError struct {
	Addr uint16
	Reg  byte
	Op   string // "read" or "write"
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("devio: %s addr 0x%02x reg 0x%02x: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrTransport }

// IDError reports the id register contents when they do not match.
type IDError struct {
	Want, Got byte
}

func (e *IDError) Error() string {
	return fmt.Sprintf("devio: unexpected chip id 0x%02x (want 0x%02x)", e.Got, e.Want)
}

func (e *IDError) Is(target error) bool { return target == ErrUnexpectedID }
