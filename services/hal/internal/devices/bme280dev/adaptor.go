// services/hal/internal/devices/bme280dev/adaptor.go

// Package bme280dev exposes a BME280 as temperature, pressure, humidity and
// altitude capabilities.
package bme280dev

import (
	"context"
	"time"

	"iothat-go/drivers/bme280"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("bme280", Builder{})
}

// Params: {"addr": 0x77, "sea_level_hpa": 1013.25, "forced": false, "period_ms": 2000}
type Params struct {
	Addr        int     `json:"addr,omitempty"`
	SeaLevelHPa float64 `json:"sea_level_hpa,omitempty"`
	Forced      bool    `json:"forced,omitempty"`
	PeriodMs    int     `json:"period_ms,omitempty"`
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
	if p.Addr == 0 {
		p.Addr = bme280.Address
	}
	if p.SeaLevelHPa <= 0 {
		p.SeaLevelHPa = bme280.StandardSeaLevelHPa
	}
	s := bme280.DefaultSettings()
	if p.Forced {
		s.Mode = bme280.ModeForced
	}
	ad := &adaptor{
		id:   in.DeviceID,
		bus:  in.BusRefID,
		addr: uint16(p.Addr),
		sea:  p.SeaLevelHPa,
		dev:  bme280.New(bus, bme280.Config{Address: uint16(p.Addr), Settings: &s}),
	}
	every := 2 * time.Second
	if p.PeriodMs > 0 {
		every = timex.Ms(p.PeriodMs)
	}
	return halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID, SampleEvery: every}, nil
}

type adaptor struct {
	id   string
	bus  string
	addr uint16
	sea  float64
	dev  *bme280.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) info(unit string) types.Info {
	return types.Info{SchemaVersion: 1, Driver: "bme280", Unit: unit, Bus: a.bus, Addr: a.addr}
}

func (a *adaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{
		{Kind: types.KindTemperature, Info: a.info("C")},
		{Kind: types.KindPressure, Info: a.info("Pa")},
		{Kind: types.KindHumidity, Info: a.info("%RH")},
		{Kind: types.KindAltitude, Info: a.info("m")},
	}
}

// Trigger only checks the init gate. In normal mode the sensor converts on
// its own; forced conversions run inside Read and are short at the default
// oversampling.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, halcore.Ready(a.dev)
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	m, err := a.dev.Read()
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	s := halcore.Sample{
		{Kind: types.KindTemperature, Payload: types.TemperatureValue{C: m.Temperature, TsMs: ts}, TsMs: ts},
		{Kind: types.KindPressure, Payload: types.PressureValue{Pa: m.Pressure, TsMs: ts}, TsMs: ts},
		{Kind: types.KindHumidity, Payload: types.HumidityValue{RH: m.Humidity, TsMs: ts}, TsMs: ts},
	}
	// Pressure is 0 when the calibration is degenerate; no altitude then.
	if alt, err := m.Altitude(a.sea); err == nil {
		s = append(s, halcore.Reading{
			Kind:    types.KindAltitude,
			Payload: types.AltitudeValue{M: alt, SeaLevelHPa: a.sea, TsMs: ts},
			TsMs:    ts,
		})
	}
	return s, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) Close() error { return a.dev.Close() }
