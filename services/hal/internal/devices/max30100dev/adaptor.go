// services/hal/internal/devices/max30100dev/adaptor.go

// Package max30100dev exposes a MAX30100 as a pulse capability.
package max30100dev

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/max30100"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("max30100", Builder{})
}

// Params: {"mode": "spo2"|"heart_rate", "red_current": 4, "ir_current": 4,
// "die_temp": true, "period_ms": 1000}
type Params struct {
	Mode       string `json:"mode,omitempty"`
	RedCurrent *int   `json:"red_current,omitempty"`
	IRCurrent  *int   `json:"ir_current,omitempty"`
	DieTemp    *bool  `json:"die_temp,omitempty"`
	PeriodMs   int    `json:"period_ms,omitempty"`
}

func (p Params) settings() (max30100.Settings, error) {
	s := max30100.DefaultSettings()
	switch p.Mode {
	case "", "spo2":
	case "heart_rate":
		s.Mode = max30100.ModeHeartRate
	default:
		return s, fmt.Errorf("max30100: mode %q: %w", p.Mode, devio.ErrInvalidParams)
	}
	for _, c := range []struct {
		v   *int
		dst *max30100.Current
	}{{p.RedCurrent, &s.RedCurrent}, {p.IRCurrent, &s.IRCurrent}} {
		if c.v == nil {
			continue
		}
		if *c.v < 0 {
			return s, fmt.Errorf("max30100: led current %d: %w", *c.v, devio.ErrInvalidParams)
		}
		*c.dst = max30100.Current(*c.v)
	}
	return s, s.Validate()
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
	s, err := p.settings()
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	ad := &adaptor{
		id:      in.DeviceID,
		bus:     in.BusRefID,
		dieTemp: p.DieTemp == nil || *p.DieTemp,
		dev:     max30100.New(bus, max30100.Config{Settings: &s}),
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
	dieTemp bool
	dev     *max30100.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: types.KindPulse,
		Info: types.Info{SchemaVersion: 1, Driver: "max30100", Unit: "counts", Bus: a.bus, Addr: max30100.Address},
	}}
}

func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, halcore.Ready(a.dev)
}

// Collect drains the FIFO. An empty FIFO reads as not ready so the worker
// retries until samples arrive.
func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	avg, err := a.dev.ReadAverages()
	if errors.Is(err, max30100.ErrEmpty) {
		return nil, halcore.ErrNotReady
	}
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	v := types.PulseValue{
		IR:        avg.IR,
		Red:       avg.Red,
		Samples:   avg.N,
		HeartRate: avg.IR / max30100.HeartRateDivisor,
		TsMs:      ts,
	}
	if a.dieTemp {
		c, err := a.dev.ReadTemperature()
		if err != nil {
			return nil, err
		}
		v.DieC = c
	}
	return halcore.Sample{{Kind: types.KindPulse, Payload: v, TsMs: ts}}, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) Close() error { return a.dev.Close() }
