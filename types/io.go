package types

import "strconv"

// ---- HAT IO ----

// AnalogValue holds channels 1..4 scaled to 0..1 (index 0 is channel 1).
type AnalogValue struct {
	Ratio [4]float64 `json:"ratio"`
	TsMs  int64      `json:"ts_ms"`
}

func (v AnalogValue) Fields() map[string]float64 {
	m := make(map[string]float64, len(v.Ratio))
	for i, r := range v.Ratio {
		m["ch"+strconv.Itoa(i+1)] = r
	}
	return m
}

// IRCode is one NEC frame as 8 hex digits.
type IRCode struct {
	Code string `json:"code"`
	TsMs int64  `json:"ts_ms"`
}

// IRSend is the ir send control payload.
type IRSend struct {
	Code string `json:"code"`
}

type RelayState struct {
	Channel int   `json:"channel"`
	On      bool  `json:"on"`
	TsMs    int64 `json:"ts_ms"`
}

// RelaySet is the relay set control payload. Toggle ignores On.
type RelaySet struct {
	Channel int  `json:"channel"`
	On      bool `json:"on"`
	Toggle  bool `json:"toggle,omitempty"`
}

// InputEvent reports one input change after polarity is applied.
type InputEvent struct {
	Source  string `json:"source"` // "motion", "optocoupler", "tilt", ...
	Channel int    `json:"channel"`
	State   bool   `json:"state"`
	TsMs    int64  `json:"ts_ms"`
}

// InputStates is the reply to an input get control.
type InputStates struct {
	Source string `json:"source"`
	States []bool `json:"states"`
}
