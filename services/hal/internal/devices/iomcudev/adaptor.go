// services/hal/internal/devices/iomcudev/adaptor.go

// Package iomcudev exposes the IO co-processor as two devices: the analog
// inputs and the infrared transceiver.
package iomcudev

import (
	"context"
	"fmt"
	"slices"
	"time"

	"iothat-go/drivers/devio"
	"iothat-go/drivers/hatio"
	"iothat-go/drivers/iomcu"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/types"
	"iothat-go/x/timex"
)

func init() {
	registry.RegisterBuilder("iomcu_analog", AnalogBuilder{})
	registry.RegisterBuilder("iomcu_ir", IRBuilder{})
}

// ---- analog ----

// AnalogParams: {"channels": [1,2,3,4], "samples": 1, "period_ms": 1000}
type AnalogParams struct {
	Channels []int `json:"channels,omitempty"`
	Samples  int   `json:"samples,omitempty"`
	PeriodMs int   `json:"period_ms,omitempty"`
}

type AnalogBuilder struct{}

func (AnalogBuilder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	bus, err := in.I2C()
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	var p AnalogParams
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return halcore.BuildOutput{}, err
	}
	chans := p.Channels
	if len(chans) == 0 {
		chans = []int{1, 2, 3, 4}
	}
	for _, ch := range chans {
		if ch < 1 || ch > iomcu.Channels {
			return halcore.BuildOutput{}, fmt.Errorf("iomcu: analog channel %d: %w", ch, devio.ErrInvalidParams)
		}
	}
	slices.Sort(chans)
	ad := &analog{
		id:       in.DeviceID,
		bus:      in.BusRefID,
		channels: slices.Compact(chans),
		samples:  max(p.Samples, 1),
		dev:      iomcu.New(bus),
	}
	every := time.Second
	if p.PeriodMs > 0 {
		every = timex.Ms(p.PeriodMs)
	}
	return halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID, SampleEvery: every}, nil
}

type analog struct {
	id       string
	bus      string
	channels []int
	samples  int
	dev      *iomcu.Device
}

func (a *analog) ID() string { return a.id }

func (a *analog) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: types.KindAnalog,
		Info: types.Info{SchemaVersion: 1, Driver: "iomcu", Unit: "ratio", Bus: a.bus, Addr: iomcu.Address},
	}}
}

// The co-processor converts continuously.
func (a *analog) Trigger(ctx context.Context) (time.Duration, error) { return 0, nil }

func (a *analog) Collect(ctx context.Context) (halcore.Sample, error) {
	var v types.AnalogValue
	for _, ch := range a.channels {
		r, err := a.dev.ReadAnalogAverage(ch, a.samples)
		if err != nil {
			return nil, err
		}
		v.Ratio[ch-1] = r
	}
	v.TsMs = timex.NowMs()
	return halcore.Sample{{Kind: types.KindAnalog, Payload: v, TsMs: v.TsMs}}, nil
}

func (a *analog) Control(kind, method string, payload any) (any, error) {
	return nil, halcore.ErrUnsupported
}

// ---- infrared ----

// IRParams: {"irq_pin": 18}. A negative irq_pin leaves reception polled by
// read_now only.
type IRParams struct {
	IRQPin *int `json:"irq_pin,omitempty"`
}

type IRBuilder struct{}

func (IRBuilder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	bus, err := in.I2C()
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	var p IRParams
	if err := util.DecodeJSON(in.ParamsJSON, &p); err != nil {
		return halcore.BuildOutput{}, err
	}
	ad := &ir{id: in.DeviceID, bus: in.BusRefID, dev: iomcu.New(bus)}
	out := halcore.BuildOutput{Adaptor: ad, BusID: in.BusRefID}

	n := hatio.PinIRInt
	if p.IRQPin != nil {
		n = *p.IRQPin
	}
	if n >= 0 {
		gp, err := in.Pin(n)
		if err != nil {
			return halcore.BuildOutput{}, err
		}
		pin, ok := gp.(halcore.IRQPin)
		if !ok {
			return halcore.BuildOutput{}, fmt.Errorf("iomcu_ir: %w: pin %d has no interrupts", errcode.Unsupported, n)
		}
		if err := pin.ConfigureInput(halcore.PullNone); err != nil {
			return halcore.BuildOutput{}, err
		}
		ad.pins = []int{n}
		out.IRQs = []halcore.IRQRequest{{
			DevID: in.DeviceID, Tag: 1, Pin: pin, Edge: halcore.EdgeRising, DebounceMS: hatio.DebounceMs,
		}}
	}
	if err := ad.dev.SetIRReception(true); err != nil {
		return halcore.BuildOutput{}, err
	}
	return out, nil
}

type ir struct {
	id   string
	bus  string
	pins []int
	dev  *iomcu.Device
}

func (a *ir) ID() string { return a.id }

func (a *ir) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{
		Kind: types.KindIR,
		Info: types.Info{SchemaVersion: 1, Driver: "iomcu", Unit: "nec", Bus: a.bus, Addr: iomcu.Address, Pins: a.pins},
	}}
}

// HandleEdge asks for a read of the received frame on each rising edge.
func (a *ir) HandleEdge(ev halcore.EdgeEvent) (halcore.Sample, bool) {
	return nil, ev.Edge == halcore.EdgeRising
}

func (a *ir) Trigger(ctx context.Context) (time.Duration, error) { return 0, nil }

func (a *ir) Collect(ctx context.Context) (halcore.Sample, error) {
	c, err := a.dev.LastIRCode()
	if err != nil {
		return nil, err
	}
	ts := timex.NowMs()
	return halcore.Sample{{
		Kind:    types.KindIR,
		Payload: types.IRCode{Code: c.String(), TsMs: ts},
		TsMs:    ts,
		Event:   true,
	}}, nil
}

// Control: ir/send {"code":"20df10ef"}.
func (a *ir) Control(kind, method string, payload any) (any, error) {
	if kind != types.KindIR || method != consts.CtrlSend {
		return nil, halcore.ErrUnsupported
	}
	var req types.IRSend
	if err := util.DecodeJSON(payload, &req); err != nil {
		return nil, errcode.InvalidPayload
	}
	c, err := iomcu.ParseCode(req.Code)
	if err != nil {
		return nil, err
	}
	if err := a.dev.SendIRCode(c); err != nil {
		return nil, err
	}
	return types.IRSend{Code: c.String()}, nil
}

func (a *ir) Close() error { return a.dev.Close() }
