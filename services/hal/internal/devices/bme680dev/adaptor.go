// services/hal/internal/devices/bme680dev/adaptor.go

// Package bme680dev exposes a BME680 as environmental and gas capabilities.
package bme680dev

import (
	"context"
	"errors"
	"time"

	"iothat-go/drivers/bme680"
	"iothat-go/drivers/devio"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("bme680", Builder{})
}

// Params: {"addr": 0x76, "gas": true, "heater_c": 320, "heater_ms": 150,
// "sea_level_hpa": 1013.25, "period_ms": 3000}
type Params struct {
	Addr        int     `json:"addr,omitempty"`
	Gas         *bool   `json:"gas,omitempty"`
	HeaterC     int     `json:"heater_c,omitempty"`
	HeaterMs    int     `json:"heater_ms,omitempty"`
	SeaLevelHPa float64 `json:"sea_level_hpa,omitempty"`
	PeriodMs    int     `json:"period_ms,omitempty"`
}

func (p Params) settings() (bme680.Settings, error) {
	s := bme680.DefaultSettings()
	if p.Gas != nil {
		s.Gas.Enabled = *p.Gas
	}
	if p.HeaterC > 0 {
		s.Gas.HeaterTemp = uint16(p.HeaterC)
	}
	if p.HeaterMs > 0 {
		s.Gas.HeaterDuration = uint16(p.HeaterMs)
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
	if p.Addr == 0 {
		p.Addr = bme680.Address
	}
	if p.SeaLevelHPa <= 0 {
		p.SeaLevelHPa = bme680.StandardSeaLevelHPa
	}
	ad := &adaptor{
		id:   in.DeviceID,
		bus:  in.BusRefID,
		addr: uint16(p.Addr),
		sea:  p.SeaLevelHPa,
		gas:  s.Gas.Enabled,
		dev:  bme680.New(bus, bme680.Config{Address: uint16(p.Addr), Settings: &s}),
	}
	every := 3 * time.Second
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
	gas  bool
	dev  *bme680.Device
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) info(unit string) types.Info {
	return types.Info{SchemaVersion: 1, Driver: "bme680", Unit: unit, Bus: a.bus, Addr: a.addr}
}

func (a *adaptor) Capabilities() []halcore.CapInfo {
	caps := []halcore.CapInfo{
		{Kind: types.KindTemperature, Info: a.info("C")},
		{Kind: types.KindPressure, Info: a.info("Pa")},
		{Kind: types.KindHumidity, Info: a.info("%RH")},
		{Kind: types.KindAltitude, Info: a.info("m")},
	}
	if a.gas {
		caps = append(caps, halcore.CapInfo{Kind: types.KindGas, Info: a.info("Ohm")})
	}
	return caps
}

// Trigger starts a forced cycle; the worker collects after the datasheet
// estimate, which includes the heater time.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if err := halcore.Ready(a.dev); err != nil {
		return 0, err
	}
	return a.dev.StartMeasurement(a.gas)
}

func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	m, err := a.dev.Collect()
	if errors.Is(err, devio.ErrBusy) {
		return nil, halcore.ErrNotReady
	}
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	s := halcore.Sample{
		{Kind: types.KindTemperature, Payload: types.TemperatureValue{C: m.Temperature, TsMs: ts}, TsMs: ts},
		{Kind: types.KindPressure, Payload: types.PressureValue{Pa: m.Pressure, TsMs: ts}, TsMs: ts},
		{Kind: types.KindHumidity, Payload: types.HumidityValue{RH: m.Humidity, TsMs: ts}, TsMs: ts},
	}
	if alt, err := m.Altitude(a.sea); err == nil {
		s = append(s, halcore.Reading{
			Kind:    types.KindAltitude,
			Payload: types.AltitudeValue{M: alt, SeaLevelHPa: a.sea, TsMs: ts},
			TsMs:    ts,
		})
	}
	if a.gas {
		s = append(s, halcore.Reading{
			Kind:    types.KindGas,
			Payload: types.GasValue{Ohm: m.GasResistance, Valid: m.GasValid, Stable: m.HeatStable, TsMs: ts},
			TsMs:    ts,
		})
	}
	return s, nil
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

func (a *adaptor) Close() error { return a.dev.Close() }
