// services/hal/internal/devices/inputdev/adaptor.go

// Package inputdev exposes the HAT's digital input groups (PIR, opto- and
// photocouplers, 3.3 V digital inputs) as input capabilities. Changes are
// published as events; read_now and get report the current levels.
package inputdev

import (
	"context"
	"fmt"
	"time"

	"iothat-go/drivers/hatio"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	for _, t := range []string{"pir", "optocoupler", "photocoupler", "digital_in", "tilt"} {
		registry.RegisterBuilder(t, Builder{})
	}
}

// Params: {"debounce_ms": 10}
type Params struct {
	DebounceMs *int `json:"debounce_ms,omitempty"`
}

type Builder struct{}

// Build resolves the group from the device type: pir, optocoupler,
// photocoupler, digital_in or tilt.
func (Builder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	kind, ok := hatio.ParseKind(in.Type)
	if !ok || kind == hatio.KindIRCode {
		return halcore.BuildOutput{}, fmt.Errorf("%s: %w", in.Type, errcode.UnknownType)
	}
	var p Params
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return halcore.BuildOutput{}, err
	}
	debounce := hatio.DebounceMs
	if p.DebounceMs != nil && *p.DebounceMs >= 0 {
		debounce = *p.DebounceMs
	}

	lines := hatio.Inputs(kind)
	ad := &adaptor{id: in.DeviceID, kind: kind, lines: lines, pins: make([]halcore.GPIOPin, len(lines))}
	var out halcore.BuildOutput
	for i, line := range lines {
		gp, err := in.Pin(line.Pin)
		if err != nil {
			return halcore.BuildOutput{}, err
		}
		pin, ok := gp.(halcore.IRQPin)
		if !ok {
			return halcore.BuildOutput{}, fmt.Errorf("%s: %w: pin %d has no interrupts", in.Type, errcode.Unsupported, line.Pin)
		}
		pull := halcore.PullNone
		if line.PullUp {
			pull = halcore.PullUp
		}
		if err := pin.ConfigureInput(pull); err != nil {
			return halcore.BuildOutput{}, err
		}
		edge := halcore.EdgeBoth
		if line.RisingOnly {
			edge = halcore.EdgeRising
		}
		ad.pins[i] = pin
		out.IRQs = append(out.IRQs, halcore.IRQRequest{
			DevID: in.DeviceID, Tag: line.Channel, Pin: pin, Edge: edge, DebounceMS: debounce,
		})
	}
	out.Adaptor = ad
	return out, nil
}

type adaptor struct {
	id    string
	kind  hatio.Kind
	lines []hatio.Input
	pins  []halcore.GPIOPin
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	nums := make([]int, len(a.lines))
	for i, l := range a.lines {
		nums[i] = l.Pin
	}
	return []halcore.CapInfo{{
		Kind: types.KindInput,
		Info: types.Info{SchemaVersion: 1, Driver: a.kind.String(), Pins: nums},
	}}
}

// HandleEdge turns a debounced edge into an input event. The edge, not the
// level sampled afterwards, decides the raw state so short pulses on
// rising-only lines still read as activations.
func (a *adaptor) HandleEdge(ev halcore.EdgeEvent) (halcore.Sample, bool) {
	line, ok := hatio.Lookup(a.kind, ev.Tag)
	if !ok {
		return nil, false
	}
	d := line.Decode(ev.Edge == halcore.EdgeRising)
	ts := ev.TS.UnixMilli()
	return halcore.Sample{{
		Kind:    types.KindInput,
		Payload: types.InputEvent{Source: d.Kind.String(), Channel: d.Channel, State: d.State, TsMs: ts},
		TsMs:    ts,
		Event:   true,
	}}, false
}

func (a *adaptor) states() types.InputStates {
	st := types.InputStates{Source: a.kind.String(), States: make([]bool, len(a.lines))}
	for i, l := range a.lines {
		st.States[i] = l.Decode(a.pins[i].Get()).State
	}
	return st
}

func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) { return 0, nil }

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	ts := timex.NowMs()
	return halcore.Sample{{Kind: types.KindInput, Payload: a.states(), TsMs: ts}}, nil
}

// Control: input/get returns the current states.
func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	if kind != types.KindInput || method != consts.CtrlGet {
		return nil, halcore.ErrUnsupported
	}
	return a.states(), nil
}
