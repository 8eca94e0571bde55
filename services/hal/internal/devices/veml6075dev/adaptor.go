// services/hal/internal/devices/veml6075dev/adaptor.go

// Package veml6075dev exposes a VEML6075 as a uv capability.
package veml6075dev

import (
	"context"
	"fmt"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/veml6075"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("veml6075", Builder{})
}

// Params: {"integration_ms": 100, "high_dynamic": false, "period_ms": 2000}
type Params struct {
	IntegrationMs int  `json:"integration_ms,omitempty"`
	HighDynamic   bool `json:"high_dynamic,omitempty"`
	PeriodMs      int  `json:"period_ms,omitempty"`
}

func integration(ms int) (veml6075.IntegrationTime, error) {
	if ms == 0 {
		return veml6075.DefaultSettings().IntegrationTime, nil
	}
	for it := veml6075.IT50ms; it <= veml6075.IT800ms; it++ {
		if it.Duration() == timex.Ms(ms) {
			return it, nil
		}
	}
	return 0, fmt.Errorf("veml6075: integration %d ms: %w", ms, devio.ErrInvalidParams)
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
	it, err := integration(p.IntegrationMs)
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	s := veml6075.Settings{IntegrationTime: it, HighDynamic: p.HighDynamic}
	ad := &adaptor{
		id:  in.DeviceID,
		bus: in.BusRefID,
		dev: veml6075.New(bus, veml6075.Config{Settings: &s}),
	}
	every := 2 * time.Second
	if p.PeriodMs > 0 {
		every = timex.Ms(p.PeriodMs)
	}
	return halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID, SampleEvery: every}, nil
}

type adaptor struct {
	id  string
	bus string
	dev *veml6075.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: types.KindUV,
		Info: types.Info{SchemaVersion: 1, Driver: "veml6075", Unit: "uvi", Bus: a.bus, Addr: veml6075.Address},
	}}
}

// The sensor runs continuously, so the registers always hold the last
// complete integration.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, halcore.Ready(a.dev)
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	raw, err := a.dev.ReadRaw()
	if err != nil {
		return nil, err
	}
	c := a.dev.Coefficients()
	ts := timex.NowMs()
	v := types.UVValue{
		UVA:    c.UVA(raw),
		UVB:    c.UVB(raw),
		IndexA: c.UVIndexA(raw),
		IndexB: c.UVIndexB(raw),
		Index:  c.AverageUVIndex(raw),
		TsMs:   ts,
	}
	return halcore.Sample{{Kind: types.KindUV, Payload: v, TsMs: ts}}, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) Close() error { return a.dev.Close() }
