// services/hal/internal/devices/relaydev/adaptor.go

// Package relaydev exposes the two relays as one relay capability with
// set and get controls.
package relaydev

import (
	"context"
	"fmt"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/relay"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("relay", Builder{})
}

// Params: {"pins": [20, 12]}
type Params struct {
	Pins []int `json:"pins,omitempty"`
}

type Builder struct{}

func (Builder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	var p Params
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return halcore.BuildOutput{}, err
	}
	nums := relay.Pins[:]
	if len(p.Pins) > 0 {
		nums = p.Pins
	}
	if len(nums) != relay.Channels {
		return halcore.BuildOutput{}, fmt.Errorf("relay: %d pins: %w", len(nums), devio.ErrInvalidParams)
	}
	var pins [relay.Channels]halcore.GPIOPin
	for i, n := range nums {
		pin, err := in.Pin(n)
		if err != nil {
			return halcore.BuildOutput{}, err
		}
		if err := pin.ConfigureOutput(false); err != nil {
			return halcore.BuildOutput{}, err
		}
		pins[i] = pin
	}
	ad := &adaptor{
		id:   in.DeviceID,
		pins: append([]int(nil), nums...),
		ctl:  relay.New(pins[0], pins[1]),
	}
	return halcore.BuildOutput{Adaptor: ad}, nil
}

type adaptor struct {
	id   string
	pins []int
	ctl  *relay.Controller
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: types.KindRelay,
		Info: types.Info{SchemaVersion: 1, Driver: "relay", Pins: a.pins},
	}}
}

func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) { return 0, nil }

// Collect reports both channels as values.
func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	states, err := a.states()
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	return halcore.Sample{{Kind: types.KindRelay, Payload: states, TsMs: ts}}, nil
}

func (a *adaptor) states() ([]types.RelayState, error) {
	ts := timex.NowMs()
	out := make([]types.RelayState, 0, relay.Channels)
	for ch := 1; ch <= relay.Channels; ch++ {
		on, err := a.ctl.State(ch)
		if err != nil {
			return nil, err
		}
		out = append(out, types.RelayState{Channel: ch, On: on, TsMs: ts})
	}
	return out, nil
}

// Control: relay/set {"channel":1,"on":true} or {"channel":1,"toggle":true};
// relay/get {"channel":1} or no payload for both.
func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	if kind != types.KindRelay {
		return nil, halcore.ErrUnsupported
	}
	switch method {
	case consts.CtrlSet:
		var req types.RelaySet
		if err := util.DecodeJSON(payload, &req); err != nil {
			return nil, errcode.InvalidPayload
		}
		on := req.On
		var err error
		if req.Toggle {
			on, err = a.ctl.Toggle(req.Channel)
		} else {
			err = a.ctl.Set(req.Channel, on)
		}
		if err != nil {
			return nil, err
		}
		return types.RelayState{Channel: req.Channel, On: on, TsMs: timex.NowMs()}, nil
	case consts.CtrlGet:
		var req struct {
			Channel int `json:"channel"`
		}
		if err := util.DecodeJSON(payload, &req); err != nil {
			return nil, errcode.InvalidPayload
		}
		if req.Channel == 0 {
			return a.states()
		}
		on, err := a.ctl.State(req.Channel)
		if err != nil {
			return nil, err
		}
		return types.RelayState{Channel: req.Channel, On: on, TsMs: timex.NowMs()}, nil
	default:
		return nil, halcore.ErrUnsupported
	}
}

func (a *adaptor) Close() error { return a.ctl.Close() }
