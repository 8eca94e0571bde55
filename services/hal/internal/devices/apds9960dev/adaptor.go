// services/hal/internal/devices/apds9960dev/adaptor.go

// Package apds9960dev exposes the APDS-9960 as light and proximity
// capabilities with a set_mode control.
package apds9960dev

import (
	"context"
	"errors"
	"sync"
	"time"

	"iothat-go/drivers/apds9960"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("apds9960", Builder{})
}

// Params: {"mode": {"ambient": true, "proximity": true}, "period_ms": 1000}
type Params struct {
	Mode     *types.LightMode `json:"mode,omitempty"`
	PeriodMs int              `json:"period_ms,omitempty"`
}

var errSetMode = errors.New("apds9960: mode not applied")

type Builder struct{}

func (Builder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	bus, err := in.I2C()
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	var p Params
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return halcore.BuildOutput{}, err
	}
	m := apds9960.DefaultMode()
	if p.Mode != nil {
		m = fromPayload(*p.Mode)
	}
	ad := &adaptor{
		id:   in.DeviceID,
		bus:  in.BusRefID,
		mode: m,
		dev:  apds9960.New(bus, apds9960.Config{Mode: &m}),
	}
	every := time.Second
	if p.PeriodMs > 0 {
		every = timex.Ms(p.PeriodMs)
	}
	return halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID, SampleEvery: every}, nil
}

func fromPayload(m types.LightMode) apds9960.Mode {
	return apds9960.Mode{Ambient: m.Ambient, Proximity: m.Proximity, Gesture: m.Gesture}
}

func toPayload(m apds9960.Mode) types.LightMode {
	return types.LightMode{Ambient: m.Ambient, Proximity: m.Proximity, Gesture: m.Gesture}
}

type adaptor struct {
	id  string
	bus string

	mu   sync.Mutex // mode and driver calls; Control runs off the worker
	mode apds9960.Mode
	dev  *apds9960.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	info := func(unit string) types.Info {
		return types.Info{SchemaVersion: 1, Driver: "apds9960", Unit: unit, Bus: a.bus, Addr: apds9960.Address}
	}
	return []halcore.CapInfo{
		{Kind: types.KindLight, Info: info("counts")},
		{Kind: types.KindProximity, Info: info("counts")},
	}
}

func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, halcore.Ready(a.dev)
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := timex.NowMs()
	var s halcore.Sample
	if a.mode.Ambient {
		c, err := a.dev.ReadAmbient()
		if err != nil {
			return nil, err
		}
		rgb, err := a.dev.ReadRGB()
		if err != nil {
			return nil, err
		}
		s = append(s, halcore.Reading{
			Kind:    types.KindLight,
			Payload: types.LightValue{Clear: c, R: rgb.R, G: rgb.G, B: rgb.B, TsMs: ts},
			TsMs:    ts,
		})
	}
	if a.mode.Proximity {
		n, err := a.dev.ReadProximity()
		if err != nil {
			return nil, err
		}
		s = append(s, halcore.Reading{Kind: types.KindProximity, Payload: types.ProximityValue{Count: n, TsMs: ts}, TsMs: ts})
	}
	return s, nil
}

// Control: light/set_mode {"ambient":bool,"proximity":bool,"gesture":bool}
// and light/get_mode.
func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	if kind != types.KindLight && kind != types.KindProximity {
		return nil, halcore.ErrUnsupported
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch method {
	case consts.CtrlSetMode:
		var m types.LightMode
		if err := util.DecodeJSON(payload, &m); err != nil {
			return nil, errcode.InvalidPayload
		}
		if err := halcore.Ready(a.dev); err != nil {
			return nil, err
		}
		next := fromPayload(m)
		if !a.dev.SetMode(next) {
			return nil, errSetMode
		}
		a.mode = next
		return toPayload(next), nil
	case consts.CtrlGetMode:
		return toPayload(a.mode), nil
	default:
		return nil, halcore.ErrUnsupported
	}
}

func (a *adaptor) Close() error { return a.dev.Close() }
