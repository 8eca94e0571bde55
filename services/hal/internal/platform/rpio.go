// services/hal/internal/platform/rpio.go

package platform

import (
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"iothat-go/services/hal/internal/halcore"
)

// edgePoll is how often a watched rpio pin's event-detect flag is sampled.
var edgePoll = time.Millisecond

// ---- GPIO via /dev/gpiomem (go-rpio) ----

type rpioPinFactory struct{}

// OpenRPIO maps the BCM GPIO block. The returned close func unmaps it.
func OpenRPIO() (halcore.PinFactory, func() error, error) {
	if err := rpio.Open(); err != nil {
		return nil, nil, err
	}
	return rpioPinFactory{}, rpio.Close, nil
}

func (rpioPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	// BCM GPIO0..GPIO27 are on the 40-pin header.
	if n < 0 || n > 27 {
		return nil, false
	}
	return &rpioPin{p: rpio.Pin(n), n: n}, true
}

type rpioPin struct {
	p rpio.Pin
	n int

	mu   sync.Mutex
	stop chan struct{}
}

func (r *rpioPin) ConfigureInput(pull halcore.Pull) error {
	r.p.Input()
	switch pull {
	case halcore.PullUp:
		r.p.PullUp()
	case halcore.PullDown:
		r.p.PullDown()
	default:
		r.p.PullOff()
	}
	return nil
}

func (r *rpioPin) ConfigureOutput(initial bool) error {
	r.p.Output()
	r.Set(initial)
	return nil
}

func (r *rpioPin) Set(level bool) {
	if level {
		r.p.High()
	} else {
		r.p.Low()
	}
}

func (r *rpioPin) Get() bool   { return r.p.Read() == rpio.High }
func (r *rpioPin) Toggle()     { r.p.Toggle() }
func (r *rpioPin) Number() int { return r.n }

// SetIRQ arms the SoC edge detector and samples its latch from a goroutine;
// go-rpio has no interrupt delivery.
func (r *rpioPin) SetIRQ(edge halcore.Edge, handler func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.p.Detect(toRPIOEdge(edge))
	if edge == halcore.EdgeNone || handler == nil {
		return nil
	}
	stop := make(chan struct{})
	r.stop = stop
	go func() {
		t := time.NewTicker(edgePoll)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if r.p.EdgeDetected() {
					handler()
				}
			}
		}
	}()
	return nil
}

func (r *rpioPin) ClearIRQ() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.p.Detect(rpio.NoEdge)
	return nil
}

func (r *rpioPin) stopLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func toRPIOEdge(e halcore.Edge) rpio.Edge {
	switch e {
	case halcore.EdgeRising:
		return rpio.RiseEdge
	case halcore.EdgeFalling:
		return rpio.FallEdge
	case halcore.EdgeBoth:
		return rpio.AnyEdge
	default:
		return rpio.NoEdge
	}
}
