// services/hal/internal/gpioirq/irq_worker.go

// Package gpioirq turns raw pin interrupts into debounced edge events.
// Handlers run in interrupt or poller context and only enqueue; all edge
// logic runs on the worker goroutine.
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"iothat-go/services/hal/internal/halcore"
)

type key struct {
	dev string
	tag int
}

type Worker struct {
	isrQ chan isrEvent // written from handlers, never blocks
	outQ chan halcore.EdgeEvent

	mu      sync.Mutex
	watches map[key]*watch

	isrDrops atomic.Uint32
	outDrops atomic.Uint32
}

type isrEvent struct {
	k     key
	level bool
}

type watch struct {
	req       halcore.IRQRequest
	debounce  time.Duration
	lastLevel bool // logical, after inversion
	lastEvent time.Time
	settle    *time.Timer // re-sample once a suppressed change has settled
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 64
	}
	if outBuf <= 0 {
		outBuf = 64
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan halcore.EdgeEvent, outBuf),
		watches: map[key]*watch{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.clearAll()
				return
			case ev := <-w.isrQ:
				w.handle(ev)
			}
		}
	}()
}

// Events delivers debounced edges to the service.
func (w *Worker) Events() <-chan halcore.EdgeEvent { return w.outQ }

// Register arms the pin and returns a func that disarms it. A second
// registration for the same device and tag replaces the first.
func (w *Worker) Register(req halcore.IRQRequest) (func(), error) {
	if req.Edge == halcore.EdgeNone || req.Pin == nil {
		return func() {}, nil
	}
	k := key{req.DevID, req.Tag}
	wh := &watch{
		req:       req,
		debounce:  time.Duration(req.DebounceMS) * time.Millisecond,
		lastLevel: req.Pin.Get() != req.Invert,
	}

	w.mu.Lock()
	if old, ok := w.watches[k]; ok {
		w.disarm(old)
	}
	w.watches[k] = wh
	w.mu.Unlock()

	pin := req.Pin
	if err := pin.SetIRQ(req.Edge, func() { w.enqueue(k, pin.Get()) }); err != nil {
		w.mu.Lock()
		delete(w.watches, k)
		w.mu.Unlock()
		return nil, err
	}
	return func() {
		w.mu.Lock()
		if cur, ok := w.watches[k]; ok && cur == wh {
			w.disarm(cur)
			delete(w.watches, k)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) enqueue(k key, level bool) {
	select {
	case w.isrQ <- isrEvent{k: k, level: level}:
	default:
		w.isrDrops.Add(1)
	}
}

func (w *Worker) disarm(wh *watch) {
	if wh.settle != nil {
		wh.settle.Stop()
	}
	_ = wh.req.Pin.ClearIRQ()
}

func (w *Worker) clearAll() {
	w.mu.Lock()
	for k, wh := range w.watches {
		w.disarm(wh)
		delete(w.watches, k)
	}
	w.mu.Unlock()
}

func (w *Worker) handle(ev isrEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wh := w.watches[ev.k]
	if wh == nil {
		return
	}
	level := ev.level != wh.req.Invert
	now := time.Now()

	both := wh.req.Edge == halcore.EdgeBoth

	if wh.debounce > 0 && !wh.lastEvent.IsZero() {
		if left := wh.debounce - now.Sub(wh.lastEvent); left > 0 {
			if both && wh.settle == nil {
				pin, k := wh.req.Pin, ev.k
				wh.settle = time.AfterFunc(left, func() { w.enqueue(k, pin.Get()) })
			}
			return
		}
	}
	if wh.settle != nil {
		wh.settle.Stop()
		wh.settle = nil
	}

	// A single-edge pin only interrupts on that edge, so the level seen
	// since the last event cannot be trusted to detect it.
	e := wh.req.Edge
	if both {
		switch {
		case !wh.lastLevel && level:
			e = halcore.EdgeRising
		case wh.lastLevel && !level:
			e = halcore.EdgeFalling
		default:
			e = halcore.EdgeNone
		}
	}
	wh.lastLevel = level
	if e == halcore.EdgeNone {
		return
	}
	wh.lastEvent = now
	select {
	case w.outQ <- halcore.EdgeEvent{DevID: ev.k.dev, Tag: ev.k.tag, Level: level, Edge: e, TS: now}:
	default:
		w.outDrops.Add(1)
	}
}

// ISRDrops counts handler calls lost to a full queue.
func (w *Worker) ISRDrops() uint32 { return w.isrDrops.Load() }

// OutDrops counts edges lost because the service fell behind.
func (w *Worker) OutDrops() uint32 { return w.outDrops.Load() }
