// Package integration runs the config service and the HAL together on the
// simulated HAT.
package integration

import (
	"context"
	"time"

	"iothat-go/bus"
)

func recvOrTimeout(ch <-chan *bus.Message, d time.Duration) (*bus.Message, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m := <-ch:
		return m, nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	}
}

// recvWhere waits for the first message whose payload has type T and
// satisfies ok.
func recvWhere[T any](ch <-chan *bus.Message, d time.Duration, ok func(T) bool) (T, error) {
	deadline := time.Now().Add(d)
	for {
		m, err := recvOrTimeout(ch, time.Until(deadline))
		if err != nil {
			var zero T
			return zero, err
		}
		if v, is := m.Payload.(T); is && ok(v) {
			return v, nil
		}
	}
}
