// services/hal/internal/halcore/types.go
package halcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"

	"iothat-go/errcode"
)

// Reading is one datum for one capability kind.
type Reading struct {
	Kind    string // e.g. "temperature", "uv", "input"
	Payload any    // JSON-serialisable, usually a types.*Value
	TsMs    int64  // producer timestamp (ms)
	// Event readings go to .../event instead of .../value.
	Event bool
}

// Sample is a batch collected together.
type Sample []Reading

// CapInfo describes one capability’s retained info document.
type CapInfo struct {
	Kind string // capability kind
	Info any    // small JSONable document
}

// Adaptor abstracts a concrete device/driver. Must not own goroutines or the bus.
type Adaptor interface {
	ID() string
	Capabilities() []CapInfo
	// Split-phase measurement cycle.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	Collect(ctx context.Context) (Sample, error)
	// Optional pass-through control for device-specific methods.
	Control(kind, method string, payload any) (result any, err error)
}

// EdgeHandler is implemented by adaptors that registered IRQs. It runs on
// the service goroutine and must not touch the bus; returning measure asks
// for a priority measurement instead.
type EdgeHandler interface {
	HandleEdge(ev EdgeEvent) (events Sample, measure bool)
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
}

// MeasureReq asks a worker to service an adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for "read_now"
}

// Result emitted by a worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
	Took   time.Duration // trigger to successful collect
}

var (
	// ErrNotReady signals the worker to retry Collect after backoff.
	ErrNotReady = errors.New("not ready")
	// ErrUnsupported for adaptor Control pass-through.
	ErrUnsupported = errors.New("unsupported")
)

// ---- Buses ----

// I2CBusFactory injects configured I²C instances by id.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by BCM number.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// EdgeEvent is a debounced edge on a watched pin.
type EdgeEvent struct {
	DevID string
	Tag   int // IRQRequest.Tag
	Level bool
	Edge  Edge
	TS    time.Time
}

func EdgeToString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ---- Builders ----

// BuildInput is passed to a device builder.
type BuildInput struct {
	Ctx        context.Context
	Buses      I2CBusFactory
	Pins       PinFactory
	DeviceID   string
	Type       string
	ParamsJSON any
	BusRefType string // "i2c"
	BusRefID   string // e.g. "i2c1"
}

// I2C resolves the device's bus reference.
func (in BuildInput) I2C() (drivers.I2C, error) {
	if in.BusRefType != "i2c" || in.BusRefID == "" {
		return nil, fmt.Errorf("%s: %w: missing i2c bus_ref", in.Type, errcode.InvalidParams)
	}
	if in.Buses == nil {
		return nil, fmt.Errorf("%s: %w %q", in.Type, errcode.UnknownBus, in.BusRefID)
	}
	b, ok := in.Buses.ByID(in.BusRefID)
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", in.Type, errcode.UnknownBus, in.BusRefID)
	}
	return b, nil
}

// Pin resolves a GPIO by BCM number.
func (in BuildInput) Pin(n int) (GPIOPin, error) {
	if in.Pins == nil {
		return nil, fmt.Errorf("%s: %w %d", in.Type, errcode.UnknownPin, n)
	}
	p, ok := in.Pins.ByNumber(n)
	if !ok {
		return nil, fmt.Errorf("%s: %w %d", in.Type, errcode.UnknownPin, n)
	}
	return p, nil
}

// BuildOutput describes a constructed device.
type BuildOutput struct {
	Adaptor     Adaptor
	BusID       string        // "" if not on a shared bus
	SampleEvery time.Duration // 0 if not a periodic producer
	IRQs        []IRQRequest
}

// IRQRequest asks the service to watch a GPIO pin.
type IRQRequest struct {
	DevID      string
	Tag        int // echoed in EdgeEvent, e.g. the input channel
	Pin        IRQPin
	Edge       Edge
	DebounceMS int
	Invert     bool
}

// Builder creates an adaptor from config and factories.
type Builder interface {
	Build(in BuildInput) (BuildOutput, error)
}
