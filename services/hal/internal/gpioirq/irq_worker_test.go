// services/hal/internal/gpioirq/irq_worker_test.go

package gpioirq

import (
	"context"
	"sync"
	"testing"
	"time"

	"iothat-go/services/hal/internal/halcore"
)

// fakeIRQPin implements halcore.IRQPin; fire sets the level and calls the
// handler the way an interrupt would.
type fakeIRQPin struct {
	mu      sync.Mutex
	level   bool
	handler func()
	number  int
}

func (p *fakeIRQPin) ConfigureInput(_ halcore.Pull) error { return nil }
func (p *fakeIRQPin) ConfigureOutput(initial bool) error  { p.Set(initial); return nil }
func (p *fakeIRQPin) Set(b bool)                          { p.mu.Lock(); p.level = b; p.mu.Unlock() }
func (p *fakeIRQPin) Get() bool                           { p.mu.Lock(); defer p.mu.Unlock(); return p.level }
func (p *fakeIRQPin) Toggle()                             { p.Set(!p.Get()) }
func (p *fakeIRQPin) Number() int                         { return p.number }
func (p *fakeIRQPin) SetIRQ(_ halcore.Edge, h func()) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return nil
}
func (p *fakeIRQPin) ClearIRQ() error { return p.SetIRQ(halcore.EdgeNone, nil) }
func (p *fakeIRQPin) armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler != nil
}
func (p *fakeIRQPin) fire(level bool) {
	p.Set(level)
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

func next(t *testing.T, w *Worker) halcore.EdgeEvent {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for edge")
	}
	return halcore.EdgeEvent{}
}

func none(t *testing.T, w *Worker, d time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(d):
	}
}

func TestBothEdgesDebounceSettles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(8, 8)
	w.Start(ctx)

	pin := &fakeIRQPin{number: 13}
	stop, err := w.Register(halcore.IRQRequest{DevID: "opto", Tag: 1, Pin: pin, Edge: halcore.EdgeBoth, DebounceMS: 30})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	pin.fire(true)
	if ev := next(t, w); ev.DevID != "opto" || ev.Tag != 1 || !ev.Level || ev.Edge != halcore.EdgeRising {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// A bounce inside the window is held back, then reported once the
	// window has passed with the level it settled at.
	pin.fire(false)
	none(t, w, 5*time.Millisecond)
	if ev := next(t, w); ev.Level || ev.Edge != halcore.EdgeFalling {
		t.Fatalf("unexpected settled event: %+v", ev)
	}
}

func TestInvertedLevel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(8, 8)
	w.Start(ctx)

	pin := &fakeIRQPin{number: 17}
	stop, err := w.Register(halcore.IRQRequest{DevID: "tilt", Pin: pin, Edge: halcore.EdgeBoth, Invert: true})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	pin.fire(true) // physical high is logical low
	if ev := next(t, w); ev.Level || ev.Edge != halcore.EdgeFalling {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRisingOnlyReportsEveryInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := New(8, 8)
	w.Start(ctx)

	pin := &fakeIRQPin{number: 25}
	stop, err := w.Register(halcore.IRQRequest{DevID: "pir", Pin: pin, Edge: halcore.EdgeRising})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	pin.fire(true)
	next(t, w)
	pin.Set(false) // no interrupt on the falling edge
	pin.fire(true)
	if ev := next(t, w); ev.Edge != halcore.EdgeRising || !ev.Level {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCancelDisarms(t *testing.T) {
	w := New(8, 8)
	pin := &fakeIRQPin{}
	stop, err := w.Register(halcore.IRQRequest{DevID: "d", Pin: pin, Edge: halcore.EdgeBoth})
	if err != nil {
		t.Fatal(err)
	}
	if !pin.armed() {
		t.Fatal("pin not armed")
	}
	stop()
	if pin.armed() {
		t.Fatal("pin still armed after cancel")
	}

	noop, err := w.Register(halcore.IRQRequest{DevID: "d", Pin: pin, Edge: halcore.EdgeNone})
	if err != nil || pin.armed() {
		t.Fatal("EdgeNone should not arm")
	}
	noop()
}

func TestISRDrops(t *testing.T) {
	w := New(1, 1) // not started: nothing drains the queue
	pin := &fakeIRQPin{}
	if _, err := w.Register(halcore.IRQRequest{DevID: "d", Pin: pin, Edge: halcore.EdgeBoth}); err != nil {
		t.Fatal(err)
	}
	pin.fire(true)
	pin.fire(false)
	pin.fire(true)
	if got := w.ISRDrops(); got != 2 {
		t.Fatalf("ISRDrops = %d, want 2", got)
	}
}
