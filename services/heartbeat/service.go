// Package heartbeat publishes a retained liveness record on sys/heartbeat.
// The interval follows config/heartbeat.
package heartbeat

import (
	"context"
	"time"

	"github.com/d2r2/go-logger"

	"iothat-go/bus"
	"iothat-go/types"
)

var lg = logger.NewPackageLogger("heartbeat", logger.InfoLevel)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("sys", "heartbeat")
)

// DefaultInterval applies until a config sets one.
const DefaultInterval = 30 * time.Second

type Service struct {
	Interval time.Duration
	now      func() time.Time
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := s.now
	if now == nil {
		now = time.Now
	}
	start := now()
	var seq uint64

	beat := func() {
		t := now()
		conn.Publish(conn.NewMessage(topicHeartbeat, types.Heartbeat{
			Seq:     seq,
			UptimeS: t.Sub(start).Seconds(),
			TS:      t.UnixMilli(),
		}, true))
		seq++
	}
	beat()

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Debug("stopping")
			return
		case <-tick.C:
			beat()
		case msg := <-cfgSub.Channel():
			if d, ok := intervalFrom(msg.Payload); ok {
				tick.Reset(d)
				lg.Infof("interval set to %s", d)
			} else {
				lg.Warnf("ignoring config %v", msg.Payload)
			}
		}
	}
}

// intervalFrom accepts the decoded JSON map or a typed HeartbeatConfig.
func intervalFrom(p any) (time.Duration, bool) {
	var secs float64
	switch v := p.(type) {
	case types.HeartbeatConfig:
		secs = float64(v.IntervalS)
	case map[string]any:
		f, ok := v["interval_s"].(float64)
		if !ok {
			return 0, false
		}
		secs = f
	default:
		return 0, false
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
