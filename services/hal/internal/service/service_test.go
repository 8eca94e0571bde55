package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"tinygo.org/x/drivers"

	"iothat-go/bus"
	"iothat-go/errcode"
	"iothat-go/services/hal/internal/consts"
	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/platform"
	"iothat-go/services/hal/internal/registry"
	"iothat-go/types"
)

// ---- Test fakes ----

type nopBusFactory struct{}

func (nopBusFactory) ByID(id string) (drivers.I2C, bool) { return nil, false }

type tempValue struct {
	C    float64 `json:"c"`
	TsMs int64   `json:"ts_ms"`
}

// busAdaptor is a periodic producer on "bus0".
type busAdaptor struct {
	id     string
	fail   atomic.Bool
	closed atomic.Bool
}

func (a *busAdaptor) ID() string { return a.id }
func (a *busAdaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{Kind: "temp", Info: types.Info{SchemaVersion: 1, Driver: "fake", Unit: "C"}}}
}
func (a *busAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 5 * time.Millisecond, nil
}
func (a *busAdaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	if a.fail.Load() {
		return nil, errcode.BusError
	}
	ts := time.Now().UnixMilli()
	return halcore.Sample{{Kind: "temp", Payload: tempValue{C: 42, TsMs: ts}, TsMs: ts}}, nil
}
func (a *busAdaptor) Control(kind, method string, payload any) (any, error) {
	if method == "echo" {
		return payload, nil
	}
	return nil, halcore.ErrUnsupported
}
func (a *busAdaptor) Close() error { a.closed.Store(true); return nil }

var lastBusAdaptor atomic.Pointer[busAdaptor]

type busBuilder struct{}

func (busBuilder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	a := &busAdaptor{id: in.DeviceID}
	lastBusAdaptor.Store(a)
	return halcore.BuildOutput{Adaptor: a, BusID: "bus0", SampleEvery: 50 * time.Millisecond}, nil
}

// pinAdaptor owns one IRQ line and no bus.
type pinAdaptor struct {
	id  string
	pin halcore.GPIOPin
}

func (a *pinAdaptor) ID() string { return a.id }
func (a *pinAdaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{Kind: "input", Info: types.Info{SchemaVersion: 1, Driver: "fake", Pins: []int{a.pin.Number()}}}}
}
func (a *pinAdaptor) Trigger(ctx context.Context) (time.Duration, error) { return 0, nil }
func (a *pinAdaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	return halcore.Sample{{Kind: "input", Payload: types.InputStates{Source: "fake", States: []bool{a.pin.Get()}}}}, nil
}
func (a *pinAdaptor) Control(kind, method string, payload any) (any, error) {
	if method == consts.CtrlSet {
		return types.OKReply{OK: true}, nil
	}
	return nil, halcore.ErrUnsupported
}
func (a *pinAdaptor) HandleEdge(ev halcore.EdgeEvent) (halcore.Sample, bool) {
	return halcore.Sample{{
		Kind:    "input",
		Payload: types.InputEvent{Source: "fake", Channel: ev.Tag, State: ev.Level},
		Event:   true,
	}}, false
}

type pinBuilder struct{}

func (pinBuilder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	gp, err := in.Pin(6)
	if err != nil {
		return halcore.BuildOutput{}, err
	}
	pin := gp.(halcore.IRQPin)
	a := &pinAdaptor{id: in.DeviceID, pin: pin}
	return halcore.BuildOutput{
		Adaptor: a,
		IRQs:    []halcore.IRQRequest{{DevID: in.DeviceID, Tag: 1, Pin: pin, Edge: halcore.EdgeBoth}},
	}, nil
}

// slowAdaptor holds the bus for a long Collect and records any call that
// overlaps Close or follows it.
type slowAdaptor struct {
	gen        int
	collecting atomic.Bool
	closed     atomic.Bool
	overlap    atomic.Bool
	afterClose atomic.Bool
}

type slowValue struct{ Gen int }

func (a *slowAdaptor) ID() string { return "slow" }
func (a *slowAdaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{Kind: "temp", Info: types.Info{SchemaVersion: 1, Driver: "slow"}}}
}
func (a *slowAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	if a.closed.Load() {
		a.afterClose.Store(true)
	}
	return time.Millisecond, nil
}
func (a *slowAdaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	if a.closed.Load() {
		a.afterClose.Store(true)
	}
	a.collecting.Store(true)
	time.Sleep(200 * time.Millisecond)
	a.collecting.Store(false)
	return halcore.Sample{{Kind: "temp", Payload: slowValue{Gen: a.gen}}}, nil
}
func (a *slowAdaptor) Control(string, string, any) (any, error) { return nil, halcore.ErrUnsupported }
func (a *slowAdaptor) Close() error {
	if a.collecting.Load() {
		a.overlap.Store(true)
	}
	a.closed.Store(true)
	return nil
}

var (
	slowGen  atomic.Int32
	lastSlow atomic.Pointer[slowAdaptor]
)

type slowBuilder struct{}

func (slowBuilder) Build(in halcore.BuildInput) (halcore.BuildOutput, error) {
	a := &slowAdaptor{gen: int(slowGen.Add(1))}
	lastSlow.Store(a)
	return halcore.BuildOutput{Adaptor: a, BusID: "bus0"}, nil
}

func init() {
	registry.RegisterBuilder("svc_busdev", busBuilder{})
	registry.RegisterBuilder("svc_pindev", pinBuilder{})
	registry.RegisterBuilder("svc_slowdev", slowBuilder{})
}

// ---- harness ----

type harness struct {
	conn *bus.Connection
	pins *platform.HostPinFactory
	svc  *Service
}

func start(t *testing.T) *harness {
	t.Helper()
	b := bus.NewBus(32)
	h := &harness{conn: b.NewConnection("test"), pins: platform.NewHostPinFactory()}
	h.svc = New(h.conn, Options{Buses: nopBusFactory{}, Pins: h.pins})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.svc.Run(ctx)
	h.waitHAL(t, "idle")
	return h
}

func (h *harness) configure(devs ...types.Device) {
	h.conn.Publish(h.conn.NewMessage(bus.T(consts.TokConfig, consts.TokHAL), types.HALConfig{Devices: devs}, true))
}

func waitFor[T any](t *testing.T, sub *bus.Subscription, d time.Duration, ok func(*bus.Message, T) bool) (*bus.Message, T) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if v, is := m.Payload.(T); is && ok(m, v) {
				return m, v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timeout waiting on %v", sub.Topic())
			return nil, zero
		}
	}
}

func (h *harness) waitHAL(t *testing.T, level string) types.HALState {
	t.Helper()
	sub := h.conn.Subscribe(topicHALState)
	defer h.conn.Unsubscribe(sub)
	_, st := waitFor(t, sub, 2*time.Second, func(_ *bus.Message, s types.HALState) bool { return s.Level == level })
	return st
}

func (h *harness) request(t *testing.T, kind, dev, method string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := h.conn.NewMessage(bus.T(consts.TokHAL, consts.TokCapability, kind, dev, consts.TokControl, method), payload, false)
	reply, err := h.conn.RequestWait(ctx, msg)
	if err != nil {
		t.Fatalf("%s/%s/%s: %v", kind, dev, method, err)
	}
	return reply.Payload
}

func capSub(h *harness, kind, dev, suffix string) *bus.Subscription {
	return h.conn.Subscribe(bus.T(consts.TokHAL, consts.TokCapability, kind, dev, suffix))
}

// ---- Tests ----

func TestPublishesStateAndValues(t *testing.T) {
	h := start(t)
	vals := capSub(h, "temp", "d1", consts.TokValue)
	defer vals.Unsubscribe()

	h.configure(types.Device{ID: "d1", Type: "svc_busdev"})
	h.waitHAL(t, "ready")

	info := capSub(h, "temp", "d1", consts.TokInfo)
	defer info.Unsubscribe()
	waitFor(t, info, time.Second, func(_ *bus.Message, i types.Info) bool { return i.Driver == "fake" })

	st := capSub(h, "temp", "d1", consts.TokState)
	defer st.Unsubscribe()
	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })

	waitFor(t, vals, time.Second, func(_ *bus.Message, v tempValue) bool { return v.C == 42 })
}

func TestControls(t *testing.T) {
	h := start(t)
	h.configure(types.Device{ID: "d1", Type: "svc_busdev"})
	h.waitHAL(t, "ready")

	if ack, ok := h.request(t, "temp", "d1", consts.CtrlReadNow, nil).(types.ReadNowAck); !ok || !ack.OK {
		t.Fatalf("read_now reply = %+v", ack)
	}

	cases := []struct {
		ms, want int
	}{
		{1000, 1000},
		{50, consts.MinPeriodMs},
		{10_000_000, consts.MaxPeriodMs},
	}
	for _, c := range cases {
		got := h.request(t, "temp", "d1", consts.CtrlSetRate, map[string]any{"period_ms": c.ms})
		if ack, ok := got.(types.SetRateAck); !ok || ack.PeriodMs != c.want {
			t.Fatalf("set_rate %d = %+v, want %d", c.ms, got, c.want)
		}
	}

	errCases := []struct {
		kind, dev, method string
		payload           any
		want              errcode.Code
	}{
		{"temp", "d1", consts.CtrlSetRate, map[string]any{"period_ms": 0}, errcode.InvalidPayload},
		{"temp", "nope", consts.CtrlReadNow, nil, errcode.UnknownCapability},
		{"uv", "d1", consts.CtrlReadNow, nil, errcode.UnknownCapability},
		{"temp", "d1", "launch", nil, errcode.Unsupported},
	}
	for _, c := range errCases {
		got := h.request(t, c.kind, c.dev, c.method, c.payload)
		if r, ok := got.(types.ErrorReply); !ok || r.OK || r.Error != string(c.want) {
			t.Fatalf("%s/%s/%s = %+v, want %s", c.kind, c.dev, c.method, got, c.want)
		}
	}

	if got := h.request(t, "temp", "d1", "echo", "hi"); got != "hi" {
		t.Fatalf("pass-through = %v", got)
	}
}

func TestMeasurementErrorDegrades(t *testing.T) {
	h := start(t)
	st := capSub(h, "temp", "d1", consts.TokState)
	defer st.Unsubscribe()

	h.configure(types.Device{ID: "d1", Type: "svc_busdev"})
	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })

	lastBusAdaptor.Load().fail.Store(true)
	_, s := waitFor(t, st, 2*time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkDegraded })
	if s.Error != string(errcode.BusError) {
		t.Fatalf("error = %q", s.Error)
	}

	lastBusAdaptor.Load().fail.Store(false)
	waitFor(t, st, 2*time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })
}

func TestRemovedDeviceGoesDown(t *testing.T) {
	h := start(t)
	st := capSub(h, "temp", bus.SingleWild, consts.TokState)
	defer st.Unsubscribe()

	h.configure(types.Device{ID: "dX", Type: "svc_busdev"})
	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })
	a := lastBusAdaptor.Load()

	h.configure()
	m, _ := waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkDown })
	if m.Topic[3] != "dX" {
		t.Fatalf("down on %v", m.Topic)
	}
	h.waitHAL(t, "ready")
	if !a.closed.Load() {
		t.Fatal("adaptor not closed on removal")
	}

	info := capSub(h, "temp", "dX", consts.TokInfo)
	defer info.Unsubscribe()
	select {
	case m := <-info.Channel():
		t.Fatalf("info still retained: %+v", m.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChangedDeviceIsRebuilt(t *testing.T) {
	h := start(t)
	h.configure(types.Device{ID: "d1", Type: "svc_busdev"})
	h.waitHAL(t, "ready")
	first := lastBusAdaptor.Load()

	h.configure(types.Device{ID: "d1", Type: "svc_busdev", Params: map[string]any{"x": 1}})
	deadline := time.Now().Add(time.Second)
	for lastBusAdaptor.Load() == first {
		if time.Now().After(deadline) {
			t.Fatal("device not rebuilt")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !first.closed.Load() {
		t.Fatal("old adaptor not closed")
	}
}

func TestConfigErrorsKeepGoodDevices(t *testing.T) {
	h := start(t)
	vals := capSub(h, "temp", "good", consts.TokValue)
	defer vals.Unsubscribe()

	h.configure(
		types.Device{ID: "bad", Type: "no_such_type"},
		types.Device{ID: "good", Type: "svc_busdev"},
		types.Device{ID: "good", Type: "svc_busdev"},
		types.Device{Type: "svc_busdev"},
	)
	st := h.waitHAL(t, "ready")
	if st.Status != "configured_with_errors" || st.Error == "" {
		t.Fatalf("hal state = %+v", st)
	}
	waitFor(t, vals, time.Second, func(_ *bus.Message, v tempValue) bool { return true })
}

func TestEdgesBecomeEvents(t *testing.T) {
	h := start(t)
	evs := capSub(h, "input", "p1", consts.TokEvent)
	defer evs.Unsubscribe()
	vals := capSub(h, "input", "p1", consts.TokValue)
	defer vals.Unsubscribe()

	h.configure(types.Device{ID: "p1", Type: "svc_pindev"})
	h.waitHAL(t, "ready")

	h.pins.Pin(6).Set(true)
	_, ev := waitFor(t, evs, time.Second, func(_ *bus.Message, e types.InputEvent) bool { return true })
	if ev.Channel != 1 || !ev.State {
		t.Fatalf("event = %+v", ev)
	}

	// Busless adaptors are read inline.
	if ack, ok := h.request(t, "input", "p1", consts.CtrlReadNow, nil).(types.ReadNowAck); !ok || !ack.OK {
		t.Fatalf("read_now = %+v", ack)
	}
	_, st := waitFor(t, vals, time.Second, func(_ *bus.Message, s types.InputStates) bool { return true })
	if len(st.States) != 1 || !st.States[0] {
		t.Fatalf("states = %+v", st)
	}

	got := h.request(t, "input", "p1", consts.CtrlSetRate, map[string]any{"period_ms": 500})
	if r, ok := got.(types.ErrorReply); !ok || r.Error != string(errcode.Unsupported) {
		t.Fatalf("set_rate on busless = %+v", got)
	}
	if h.svc.GPIODrops() != 0 {
		t.Fatalf("drops = %d", h.svc.GPIODrops())
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want errcode.Code
	}{
		{halcore.ErrUnsupported, errcode.Unsupported},
		{halcore.ErrNotReady, errcode.HALNotReady},
		{errors.Join(errors.New("x"), errcode.BusError), errcode.BusError},
		{errors.New("plain"), errcode.Error},
	}
	for _, c := range cases {
		if got := codeOf(c.err); got != c.want {
			t.Fatalf("codeOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func waitTrue(t *testing.T, what string, f func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRemovalWaitsForCollect(t *testing.T) {
	h := start(t)
	vals := capSub(h, "temp", "s1", consts.TokValue)
	defer vals.Unsubscribe()
	st := capSub(h, "temp", "s1", consts.TokState)
	defer st.Unsubscribe()

	h.configure(types.Device{ID: "s1", Type: "svc_slowdev"})
	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })
	first := lastSlow.Load()

	h.request(t, "temp", "s1", consts.CtrlReadNow, nil)
	waitTrue(t, "collect", first.collecting.Load)

	// rebuild under the same id while the old cycle holds the bus
	h.configure(types.Device{ID: "s1", Type: "svc_slowdev", Params: map[string]any{"v": 2}})
	waitTrue(t, "rebuild", func() bool { return lastSlow.Load() != first })
	second := lastSlow.Load()

	if !first.closed.Load() {
		t.Fatal("old adaptor not closed before rebuild")
	}
	if first.overlap.Load() {
		t.Fatal("Close ran during Collect")
	}

	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkUp })
	h.request(t, "temp", "s1", consts.CtrlReadNow, nil)
	_, v := waitFor(t, vals, 2*time.Second, func(_ *bus.Message, v slowValue) bool { return true })
	if v.Gen != second.gen {
		t.Fatalf("value from adaptor %d, want %d", v.Gen, second.gen)
	}

	h.configure()
	waitFor(t, st, time.Second, func(_ *bus.Message, s types.CapabilityState) bool { return s.Link == types.LinkDown })
	for _, a := range []*slowAdaptor{first, second} {
		if a.afterClose.Load() {
			t.Fatalf("adaptor %d used after Close", a.gen)
		}
	}
	if !second.closed.Load() || second.overlap.Load() {
		t.Fatalf("second adaptor closed=%v overlap=%v", second.closed.Load(), second.overlap.Load())
	}
}
