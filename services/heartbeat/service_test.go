package heartbeat

import (
	"context"
	"testing"
	"time"

	"iothat-go/bus"
	"iothat-go/types"
)

func next(t *testing.T, sub *bus.Subscription, within time.Duration) types.Heartbeat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		hb, ok := m.Payload.(types.Heartbeat)
		if !ok || !m.Retained {
			t.Fatalf("unexpected message %#v", m)
		}
		return hb
	case <-time.After(within):
		t.Fatal("no heartbeat")
	}
	return types.Heartbeat{}
}

func TestBeatsAndFollowsConfig(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("hb")
	mon := b.NewConnection("mon")
	sub := mon.Subscribe(topicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Interval: time.Hour}
	if err := s.Start(ctx, conn); err != nil {
		t.Fatal(err)
	}

	if hb := next(t, sub, time.Second); hb.Seq != 0 || hb.TS == 0 {
		t.Fatalf("first beat = %+v", hb)
	}

	mon.Publish(mon.NewMessage(topicConfigHeartbeat, map[string]any{"interval_s": 0.02}, true))
	hb := next(t, sub, time.Second)
	if hb.Seq != 1 || hb.UptimeS <= 0 {
		t.Fatalf("second beat = %+v", hb)
	}
}

func TestIntervalFrom(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{types.HeartbeatConfig{IntervalS: 5}, 5 * time.Second, true},
		{map[string]any{"interval_s": 1.5}, 1500 * time.Millisecond, true},
		{map[string]any{"interval_s": 0.0}, 0, false},
		{map[string]any{"interval": 3.0}, 0, false},
		{"10", 0, false},
	}
	for _, tt := range tests {
		got, ok := intervalFrom(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("intervalFrom(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
