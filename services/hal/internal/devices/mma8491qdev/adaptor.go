// services/hal/internal/devices/mma8491qdev/adaptor.go

// Package mma8491qdev exposes the MMA8491Q as acceleration readings and
// tilt events.
package mma8491qdev

import (
	"context"
	"time"

	"iothat-go/drivers/hatio"
	"iothat-go/drivers/mma8491q"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("mma8491q", Builder{})
}

// Params: {"enable_pin": 5, "tilt_pin": 17, "period_ms": 1000}
// A tilt_pin of -1 disables tilt events.
type Params struct {
	EnablePin *int `json:"enable_pin,omitempty"`
	TiltPin   *int `json:"tilt_pin,omitempty"`
	PeriodMs  int  `json:"period_ms,omitempty"`
}

func pinOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

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
	en, err := in.Pin(pinOr(p.EnablePin, hatio.PinAccelEnable))
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	if err := en.ConfigureOutput(false); err != nil {
		return halcore.BuildOutput{}, err
	}
	cfg := mma8491q.Config{Enable: en}
	pins := []int{en.Number()}
	if n := pinOr(p.TiltPin, hatio.PinTilt); n >= 0 {
		tilt, err := in.Pin(n)
		if err != nil {
			return halcore.BuildOutput{}, err
		}
		if err := tilt.ConfigureInput(halcore.PullNone); err != nil {
			return halcore.BuildOutput{}, err
		}
		cfg.Tilt = tilt
		pins = append(pins, n)
	}
	ad := &adaptor{
		id:   in.DeviceID,
		bus:  in.BusRefID,
		pins: pins,
		tilt: cfg.Tilt != nil,
		dev:  mma8491q.New(bus, cfg),
	}
	every := time.Second
	if p.PeriodMs > 0 {
		every = timex.Ms(p.PeriodMs)
	}
	return halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID, SampleEvery: every}, nil
}

type adaptor struct {
	id      string
	bus     string
	pins    []int
	tilt    bool
	dev     *mma8491q.Device
	tracker mma8491q.TiltTracker
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	caps := []halcore.CapInfo{{
		Kind: types.KindAcceleration,
		Info: types.Info{SchemaVersion: 1, Driver: "mma8491q", Unit: "g", Bus: a.bus, Addr: mma8491q.Address, Pins: a.pins},
	}}
	if a.tilt {
		caps = append(caps, halcore.CapInfo{
			Kind: types.KindTilt,
			Info: types.Info{SchemaVersion: 1, Driver: "mma8491q", Pins: a.pins[1:]},
		})
	}
	return caps
}

// The part converts once per enable pulse, which Read drives itself.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	ax, err := a.dev.Read()
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	s := halcore.Sample{{
		Kind:    types.KindAcceleration,
		Payload: types.AccelerationValue{X: ax.X, Y: ax.Y, Z: ax.Z, TsMs: ts},
		TsMs:    ts,
	}}
	if !a.tilt {
		return s, nil
	}
	tilted, err := a.dev.ReadTilt()
	if err != nil {
		return s, nil
	}
	if ev, ok := a.tracker.Update(tilted); ok {
		s = append(s, halcore.Reading{
			Kind:    types.KindTilt,
			Payload: types.InputEvent{Source: ev.Kind.String(), Channel: ev.Channel, State: ev.State, TsMs: ts},
			TsMs:    ts,
			Event:   true,
		})
	}
	return s, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) Close() error { return a.dev.Close() }
