// services/hal/internal/service/service.go

// Package service is the HAL event loop. It builds adaptors from config/hal,
// schedules measurements on one worker per bus, turns GPIO edges into
// events and answers capability controls.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/d2r2/go-logger"

	"iothat-go/bus"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/gpioirq"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/metrics"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/services/hal/internal/util"
	"iothat-go/services/hal/internal/worker"
	"iothat-go/types"
	"iothat-go/x/timex"
)

var lg = logger.NewPackageLogger("halsvc", logger.InfoLevel)

type devEntry struct {
	cfg     types.Device
	adaptor halcore.Adaptor
	caps    map[string]bool
	busID   string
	link    types.Link
	period  time.Duration
	nextDue time.Time
	irqs    []func()
}

// Options carries the factories and optional collectors.
type Options struct {
	Buses   halcore.I2CBusFactory
	Pins    halcore.PinFactory
	Metrics *metrics.Metrics // nil disables
	Worker  halcore.WorkerConfig
}

type Service struct {
	conn *bus.Connection
	opts Options

	workers map[string]*worker.MeasureWorker // busID -> worker
	results chan halcore.Result
	devices map[string]*devEntry

	timer *time.Timer
	gpioW *gpioirq.Worker
}

var (
	topicConfigHAL = bus.T(consts.TokConfig, consts.TokHAL)
	topicCtrl      = bus.T(consts.TokHAL, consts.TokCapability, bus.SingleWild, bus.SingleWild, consts.TokControl, bus.SingleWild)
	topicHALState  = bus.T(consts.TokHAL, consts.TokState)
)

func New(conn *bus.Connection, opts Options) *Service {
	return &Service{
		conn:    conn,
		opts:    opts,
		workers: map[string]*worker.MeasureWorker{},
		results: make(chan halcore.Result, 64),
		devices: map[string]*devEntry{},
		gpioW:   gpioirq.New(64, 64),
	}
}

// GPIODrops reports interrupts lost before debouncing.
func (s *Service) GPIODrops() uint32 { return s.gpioW.ISRDrops() }

func (s *Service) Run(ctx context.Context) {
	s.gpioW.Start(ctx)

	cfgSub := s.conn.Subscribe(topicConfigHAL)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		util.DrainTimer(s.timer)
	}
	defer s.timer.Stop()

	for {
		if next := s.earliestDue(); next.IsZero() {
			util.ResetTimer(s.timer, time.Hour)
		} else {
			util.ResetTimer(s.timer, time.Until(next))
		}

		select {
		case <-ctx.Done():
			for id := range s.devices {
				s.removeDevice(id)
			}
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			s.handleConfig(ctx, msg)

		case msg, ok := <-ctrlSub.Channel():
			if !ok {
				return
			}
			s.handleControl(ctx, msg)

		case <-s.timer.C:
			now := time.Now()
			for id, ent := range s.devices {
				if ent.period > 0 && !now.Before(ent.nextDue) {
					if !s.submitMeasure(id, false) {
						lg.Debugf("%s: measurement dropped, worker busy", id)
					}
					ent.nextDue = now.Add(ent.period)
				}
			}

		case r := <-s.results:
			s.handleResult(r)

		case ev := <-s.gpioW.Events():
			s.handleEdge(ctx, ev)
		}
	}
}

// ---- configuration ----

func (s *Service) handleConfig(ctx context.Context, msg *bus.Message) {
	if msg.Payload == nil {
		return
	}
	var cfg types.HALConfig
	if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
		s.publishState("error", "config_wrong_type", err)
		return
	}
	if err := s.applyConfig(ctx, cfg); err != nil {
		lg.Warnf("config applied with errors: %v", err)
		s.publishState("ready", "configured_with_errors", err)
		return
	}
	lg.Infof("configured %d devices", len(s.devices))
	s.publishState("ready", "configured", nil)
}

// applyConfig builds new devices, rebuilds changed ones and removes those
// no longer listed. Per-device failures are joined; the rest still apply.
func (s *Service) applyConfig(ctx context.Context, cfg types.HALConfig) error {
	var errs []error
	seen := map[string]struct{}{}

	for _, d := range cfg.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("device of type %q: %w: missing id", d.Type, errcode.InvalidParams))
			continue
		}
		if _, dup := seen[d.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: %w: duplicate id", d.ID, errcode.InvalidParams))
			continue
		}
		seen[d.ID] = struct{}{}

		if old, exists := s.devices[d.ID]; exists {
			if reflect.DeepEqual(old.cfg, d) {
				continue
			}
			s.removeDevice(d.ID)
		}
		if err := s.addDevice(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
		}
	}

	for id := range s.devices {
		if _, ok := seen[id]; !ok {
			s.removeDevice(id)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) addDevice(ctx context.Context, d types.Device) error {
	b, ok := registry.Lookup(d.Type)
	if !ok {
		return fmt.Errorf("%w %q", errcode.UnknownType, d.Type)
	}
	out, err := b.Build(halcore.BuildInput{
		Ctx:        ctx,
		Buses:      s.opts.Buses,
		Pins:       s.opts.Pins,
		DeviceID:   d.ID,
		Type:       d.Type,
		ParamsJSON: d.Params,
		BusRefType: d.BusRef.Type,
		BusRefID:   d.BusRef.ID,
	})
	if err != nil {
		return err
	}

	if out.BusID != "" {
		if _, ok := s.workers[out.BusID]; !ok {
			w := worker.New(out.BusID, s.opts.Worker, s.results)
			w.Start(ctx)
			s.workers[out.BusID] = w
		}
	}

	ent := &devEntry{cfg: d, adaptor: out.Adaptor, busID: out.BusID, caps: map[string]bool{}, link: types.LinkUp}
	for _, ci := range out.Adaptor.Capabilities() {
		ent.caps[ci.Kind] = true
		s.pubRet(ci.Kind, d.ID, consts.TokInfo, ci.Info)
		s.pubRet(ci.Kind, d.ID, consts.TokState, types.CapabilityState{Link: types.LinkUp, TsMs: timex.NowMs()})
	}
	s.devices[d.ID] = ent

	if out.SampleEvery > 0 && out.BusID != "" {
		ent.period = util.ClampPeriodMs(int(out.SampleEvery/time.Millisecond), consts.MinPeriodMs, consts.MaxPeriodMs)
		ent.nextDue = time.Now().Add(timex.Ms(consts.FirstReadDelay))
	}

	for _, req := range out.IRQs {
		cancel, err := s.gpioW.Register(req)
		if err != nil {
			lg.Warnf("%s: irq on pin %d: %v", d.ID, req.Pin.Number(), err)
			continue
		}
		ent.irqs = append(ent.irqs, cancel)
	}
	lg.Debugf("%s: built %s (bus %q, every %v, %d irqs)", d.ID, d.Type, out.BusID, ent.period, len(ent.irqs))
	return nil
}

// removeDevice releases the hardware, clears retained info and marks the
// capabilities down. Bus adaptors are closed by their worker, between
// cycles. Results are served while waiting so the worker never stalls.
func (s *Service) removeDevice(id string) {
	ent, ok := s.devices[id]
	if !ok {
		return
	}
	delete(s.devices, id)
	for _, cancel := range ent.irqs {
		cancel()
	}
	closeAdaptor := func() {
		if c, ok := ent.adaptor.(io.Closer); ok {
			if err := c.Close(); err != nil {
				lg.Warnf("%s: close: %v", id, err)
			}
		}
	}
	if w := s.workers[ent.busID]; w != nil {
		done := w.Release(id, closeAdaptor)
		for waiting := true; waiting; {
			select {
			case <-done:
				waiting = false
			case r := <-s.results:
				s.handleResult(r)
			}
		}
		s.drainResults()
	} else {
		closeAdaptor()
	}
	for kind := range ent.caps {
		s.pubRet(kind, id, consts.TokInfo, nil)
		s.pubRet(kind, id, consts.TokState, types.CapabilityState{Link: types.LinkDown, TsMs: timex.NowMs()})
	}
}

// drainResults serves the results already queued.
func (s *Service) drainResults() {
	for {
		select {
		case r := <-s.results:
			s.handleResult(r)
		default:
			return
		}
	}
}

// ---- controls ----

func (s *Service) handleControl(ctx context.Context, msg *bus.Message) {
	if len(msg.Topic) != len(topicCtrl) {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	kind, _ := msg.Topic[2].(string)
	devID, _ := msg.Topic[3].(string)
	method, _ := msg.Topic[5].(string)
	ent, ok := s.devices[devID]
	if !ok || !ent.caps[kind] {
		s.replyErr(msg, errcode.UnknownCapability)
		return
	}

	switch method {
	case consts.CtrlReadNow:
		if ent.busID == "" {
			if err := s.measureNow(ctx, devID); err != nil {
				s.replyErr(msg, codeOf(err))
				return
			}
			s.conn.Reply(msg, types.ReadNowAck{OK: true}, false)
			return
		}
		if !s.submitMeasure(devID, true) {
			s.replyErr(msg, errcode.Busy)
			return
		}
		if ent.period > 0 {
			ent.nextDue = time.Now().Add(ent.period)
		}
		s.conn.Reply(msg, types.ReadNowAck{OK: true}, false)

	case consts.CtrlSetRate:
		var p types.SetRate
		if err := util.DecodeJSON(msg.Payload, &p); err != nil || p.PeriodMs <= 0 {
			s.replyErr(msg, errcode.InvalidPayload)
			return
		}
		if ent.busID == "" {
			s.replyErr(msg, errcode.Unsupported)
			return
		}
		ent.period = util.ClampPeriodMs(p.PeriodMs, consts.MinPeriodMs, consts.MaxPeriodMs)
		ent.nextDue = time.Now().Add(ent.period)
		s.conn.Reply(msg, types.SetRateAck{OK: true, PeriodMs: int(ent.period / time.Millisecond)}, false)

	default:
		res, err := ent.adaptor.Control(kind, method, msg.Payload)
		if err != nil {
			s.replyErr(msg, codeOf(err))
			return
		}
		s.conn.Reply(msg, res, false)
		if ent.busID == "" && method == consts.CtrlSet {
			if err := s.measureNow(ctx, devID); err != nil {
				lg.Debugf("%s: refresh after set: %v", devID, err)
			}
		}
	}
}

// codeOf maps adaptor and driver errors to the reply code.
func codeOf(err error) errcode.Code {
	switch {
	case errors.Is(err, halcore.ErrUnsupported):
		return errcode.Unsupported
	case errors.Is(err, halcore.ErrNotReady):
		return errcode.HALNotReady
	}
	return errcode.MapDriverErr(err)
}

// ---- measurement ----

func (s *Service) submitMeasure(devID string, prio bool) bool {
	ent, ok := s.devices[devID]
	if !ok {
		return false
	}
	w := s.workers[ent.busID]
	if w == nil {
		return false
	}
	return w.Submit(halcore.MeasureReq{ID: devID, Adaptor: ent.adaptor, Prio: prio})
}

// measureNow runs a cycle inline for adaptors that own no bus. They never
// ask for a collect delay.
func (s *Service) measureNow(ctx context.Context, devID string) error {
	ent := s.devices[devID]
	start := time.Now()
	if _, err := ent.adaptor.Trigger(ctx); err != nil {
		s.handleResult(halcore.Result{ID: devID, Err: err})
		return err
	}
	sample, err := ent.adaptor.Collect(ctx)
	s.handleResult(halcore.Result{ID: devID, Sample: sample, Err: err, Took: time.Since(start)})
	return err
}

func (s *Service) earliestDue() time.Time {
	var min time.Time
	for _, ent := range s.devices {
		if ent.period > 0 && (min.IsZero() || ent.nextDue.Before(min)) {
			min = ent.nextDue
		}
	}
	return min
}

// ---- results & events ----

func (s *Service) handleResult(r halcore.Result) {
	ent, ok := s.devices[r.ID]
	if !ok {
		return
	}
	if r.Err != nil {
		code := codeOf(r.Err)
		lg.Debugf("%s: measurement failed: %v", r.ID, r.Err)
		s.opts.Metrics.MeasureError(r.ID, string(code))
		ent.link = types.LinkDegraded
		for kind := range ent.caps {
			s.pubRet(kind, r.ID, consts.TokState, types.CapabilityState{
				Link:  types.LinkDegraded,
				TsMs:  timex.NowMs(),
				Error: string(code),
			})
		}
		return
	}
	s.opts.Metrics.Measured(r.ID, r.Took)
	s.publishSample(r.ID, ent, r.Sample)
}

func (s *Service) publishSample(devID string, ent *devEntry, sample halcore.Sample) {
	for _, rd := range sample {
		if !ent.caps[rd.Kind] {
			continue
		}
		suffix := consts.TokValue
		if rd.Event {
			suffix = consts.TokEvent
		}
		s.conn.Publish(s.conn.NewMessage(capTopic(rd.Kind, devID, suffix), rd.Payload, false))
		s.opts.Metrics.Reading(devID, rd.Kind, rd.Payload)
	}
	if len(sample) > 0 && ent.link != types.LinkUp {
		ent.link = types.LinkUp
		for kind := range ent.caps {
			s.pubRet(kind, devID, consts.TokState, types.CapabilityState{Link: types.LinkUp, TsMs: timex.NowMs()})
		}
	}
}

func (s *Service) handleEdge(ctx context.Context, ev halcore.EdgeEvent) {
	ent, ok := s.devices[ev.DevID]
	if !ok {
		return
	}
	s.opts.Metrics.GPIOEvent(ev.DevID, halcore.EdgeToString(ev.Edge))
	h, ok := ent.adaptor.(halcore.EdgeHandler)
	if !ok {
		return
	}
	events, measure := h.HandleEdge(ev)
	s.publishSample(ev.DevID, ent, events)
	if !measure {
		return
	}
	if ent.busID == "" {
		_ = s.measureNow(ctx, ev.DevID)
		return
	}
	if !s.submitMeasure(ev.DevID, true) {
		lg.Warnf("%s: edge measurement dropped", ev.DevID)
	}
}

// ---- bus helpers ----

func (s *Service) publishState(level, status string, err error) {
	pl := types.HALState{Level: level, Status: status, TsMs: timex.NowMs()}
	if err != nil {
		pl.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicHALState, pl, true))
}

func (s *Service) replyErr(req *bus.Message, code errcode.Code) {
	if len(req.ReplyTo) == 0 {
		return
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(code)}, false)
}

func capTopic(kind, devID, suffix string) bus.Topic {
	return bus.T(consts.TokHAL, consts.TokCapability, kind, devID, suffix)
}

func (s *Service) pubRet(kind, devID, suffix string, p any) {
	s.conn.Publish(s.conn.NewMessage(capTopic(kind, devID, suffix), p, true))
}
