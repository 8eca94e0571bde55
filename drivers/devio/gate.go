package devio

import (
	"sync"
	"sync/atomic"
	"time"
)

// Gate defaults: poll every 10 ms, give up after 100 polls.
const (
	DefaultGateAttempts = 100
	DefaultGateInterval = 10 * time.Millisecond
)

// State of a device's initialisation.
type State int32

const (
	Uninitialized State = iota
	FetchingCalibration
	Ready
	// Failed is terminal: init returned an error, see Gate.Err.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case FetchingCalibration:
		return "fetching_calibration"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gate holds configuration and measurement calls until a device's
// background initialisation has finished. One Gate per driver instance.
type Gate struct {
	state atomic.Int32
	done  chan struct{}
	once  sync.Once

	mu  sync.Mutex
	err error

	sleep func(time.Duration)
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{}), sleep: time.Sleep}
}

// Start runs init in its own goroutine and opens the gate if it succeeds.
// Only the first call has any effect.
func (g *Gate) Start(init func() error) {
	g.once.Do(func() {
		g.state.Store(int32(FetchingCalibration))
		go func() {
			defer close(g.done)
			if err := init(); err != nil {
				g.mu.Lock()
				g.err = err
				g.mu.Unlock()
				g.state.Store(int32(Failed))
				return
			}
			g.state.Store(int32(Ready))
		}()
	})
}

func (g *Gate) State() State { return State(g.state.Load()) }

func (g *Gate) Ready() bool { return g.State() == Ready }

// AwaitReady checks the gate up to maxAttempts times, sleeping interval
// after each closed check. It gives up at once when init has failed and
// never starts initialisation itself.
func (g *Gate) AwaitReady(maxAttempts int, interval time.Duration) bool {
	for i := 0; i < maxAttempts; i++ {
		switch g.State() {
		case Ready:
			return true
		case Failed:
			return false
		}
		g.sleep(interval)
	}
	return false
}

// Wait blocks until the init goroutine has returned and reports its error.
// It returns nil at once if Start was never called.
func (g *Gate) Wait() error {
	if g.State() == Uninitialized {
		return nil
	}
	<-g.done
	return g.Err()
}

// Err is the init error, if init has failed.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
