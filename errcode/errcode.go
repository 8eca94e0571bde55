package errcode

import (
	"context"
	"errors"

	"iothat-go/drivers/devio"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	UnknownType       Code = "unknown_type"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	UnknownBus       Code = "unknown_bus"
	BusError         Code = "bus_error"
	UnknownPin       Code = "unknown_pin"
	PinInUse         Code = "pin_in_use"
	UnexpectedDevice Code = "unexpected_device"
	Timeout          Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps an operation and cause alongside a code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches op and the mapped code to err. nil stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// MapDriverErr maps driver and transport errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, devio.ErrTransport):
		return BusError
	case errors.Is(err, devio.ErrNotInitialised):
		return HALNotReady
	case errors.Is(err, devio.ErrMeasureTimeout), errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, devio.ErrInvalidParams):
		return InvalidParams
	case errors.Is(err, devio.ErrUnexpectedID):
		return UnexpectedDevice
	case errors.Is(err, devio.ErrBusy):
		return Busy
	}
	return Of(err)
}
