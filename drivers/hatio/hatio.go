// Package hatio is the HAT's GPIO pin map and the typed events its digital
// inputs produce.
//
// Pin numbers are BCM. Drivers only need the two small pin interfaces below,
// which the HAL's GPIO pins satisfy.
package hatio

// BCM pin numbers.
const (
	PinRelay1 = 20
	PinRelay2 = 12

	PinPIR = 25

	PinAccelEnable = 5
	PinTilt        = 17

	PinIRInt   = 18
	PinAPDSInt = 4
)

// CouplerPins are the isolated inputs, shared by the opto- and photocoupler
// variants of the board.
var CouplerPins = [4]int{13, 19, 16, 26}

// DigitalPins are the 3.3 V digital inputs.
var DigitalPins = [4]int{21, 22, 23, 24}

// DebounceMs applies to every input line.
const DebounceMs = 10

// OutputPin drives a line.
type OutputPin interface {
	Set(level bool)
}

// InputPin samples a line.
type InputPin interface {
	Get() bool
}

// Kind identifies the source of an Event.
type Kind uint8

const (
	KindMotion Kind = iota + 1
	KindOptocoupler
	KindPhotocoupler
	KindDigitalIn
	KindTilt
	KindIRCode
)

func (k Kind) String() string {
	switch k {
	case KindMotion:
		return "motion"
	case KindOptocoupler:
		return "optocoupler"
	case KindPhotocoupler:
		return "photocoupler"
	case KindDigitalIn:
		return "digital_in"
	case KindTilt:
		return "tilt"
	case KindIRCode:
		return "ir_code"
	default:
		return "unknown"
	}
}

// Event is one state change on an input. Channel is 1-based; State is the
// logical state after polarity is applied.
type Event struct {
	Kind    Kind
	Channel int
	State   bool
}

// Input describes one input line.
type Input struct {
	Kind      Kind
	Channel   int
	Pin       int
	ActiveLow bool
	PullUp    bool
	// RisingOnly lines report activation edges only.
	RisingOnly bool
}

// Decode turns a raw line level into the input's event.
func (in Input) Decode(level bool) Event {
	return Event{Kind: in.Kind, Channel: in.Channel, State: level != in.ActiveLow}
}

// Inputs returns the HAT's lines of the given kind, in channel order.
func Inputs(k Kind) []Input {
	switch k {
	case KindMotion:
		return []Input{{Kind: k, Channel: 1, Pin: PinPIR, RisingOnly: true}}
	case KindTilt:
		return []Input{{Kind: k, Channel: 1, Pin: PinTilt, ActiveLow: true}}
	case KindIRCode:
		return []Input{{Kind: k, Channel: 1, Pin: PinIRInt, RisingOnly: true}}
	case KindOptocoupler, KindPhotocoupler:
		out := make([]Input, len(CouplerPins))
		for i, p := range CouplerPins {
			out[i] = Input{Kind: k, Channel: i + 1, Pin: p, ActiveLow: k == KindOptocoupler}
		}
		return out
	case KindDigitalIn:
		out := make([]Input, len(DigitalPins))
		for i, p := range DigitalPins {
			out[i] = Input{Kind: k, Channel: i + 1, Pin: p, PullUp: true}
		}
		return out
	}
	return nil
}

// Lookup finds one channel of a kind.
func Lookup(k Kind, channel int) (Input, bool) {
	for _, in := range Inputs(k) {
		if in.Channel == channel {
			return in, true
		}
	}
	return Input{}, false
}

// ParseKind maps a device type name to its input kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "pir", "motion":
		return KindMotion, true
	case "optocoupler":
		return KindOptocoupler, true
	case "photocoupler":
		return KindPhotocoupler, true
	case "digital_in":
		return KindDigitalIn, true
	case "tilt":
		return KindTilt, true
	case "ir_code":
		return KindIRCode, true
	}
	return 0, false
}
