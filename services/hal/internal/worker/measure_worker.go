// Package worker runs split-phase measurements for the adaptors on one
// I²C bus. It owns the bus timing; adaptors never sleep.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/d2r2/go-logger"

	"iothat-go/services/hal/internal/halcore"
	"iothat-go/services/hal/internal/util"
)

var lg = logger.NewPackageLogger("worker", logger.InfoLevel)

// prioWait is how long a read_now submit may block on a full queue.
const prioWait = 5 * time.Millisecond

// MeasureWorker serialises Trigger and Collect for one bus. Requests for a
// device that is already between Trigger and Collect are coalesced.
type MeasureWorker struct {
	bus  string
	cfg  halcore.WorkerConfig
	reqQ chan halcore.MeasureReq
	relQ chan release
	sink chan<- halcore.Result
	done chan struct{} // closed when run returns

	inflight map[string]*cycle
	again    map[string]bool // read_now arrived while in flight
	queue    []*cycle
	timer    *time.Timer
}

type release struct {
	id   string
	fn   func()
	done chan struct{}
}

type cycle struct {
	id      string
	adaptor halcore.Adaptor
	started time.Time
	due     time.Time
	retries int
}

func New(bus string, cfg halcore.WorkerConfig, sink chan<- halcore.Result) *MeasureWorker {
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 100 * time.Millisecond
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = 250 * time.Millisecond
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 15 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	if cfg.InputQueueSize <= 0 {
		cfg.InputQueueSize = 16
	}
	return &MeasureWorker{
		bus:      bus,
		cfg:      cfg,
		reqQ:     make(chan halcore.MeasureReq, cfg.InputQueueSize),
		relQ:     make(chan release),
		sink:     sink,
		done:     make(chan struct{}),
		inflight: map[string]*cycle{},
		again:    map[string]bool{},
		timer:    time.NewTimer(time.Hour),
	}
}

// Submit queues req without blocking. Priority requests wait briefly for
// room. It reports false if the request was dropped.
func (w *MeasureWorker) Submit(req halcore.MeasureReq) bool {
	select {
	case w.reqQ <- req:
		return true
	default:
	}
	if !req.Prio {
		return false
	}
	t := time.NewTimer(prioWait)
	defer t.Stop()
	select {
	case w.reqQ <- req:
		return true
	case <-t.C:
		return false
	}
}

// Release forgets id and then runs fn on the worker goroutine, never during
// a Trigger or Collect. Queued requests for id the worker has not reached
// are dropped and no result for id is emitted once fn starts. The returned
// channel is closed when fn has returned; keep draining results until then.
// After the worker has stopped, fn runs on a goroutine of its own.
func (w *MeasureWorker) Release(id string, fn func()) <-chan struct{} {
	r := release{id: id, fn: fn, done: make(chan struct{})}
	go func() {
		select {
		case w.relQ <- r:
		case <-w.done:
			r.run()
		}
	}()
	return r.done
}

func (r release) run() {
	if r.fn != nil {
		r.fn()
	}
	close(r.done)
}

// Start runs the worker until ctx is cancelled.
func (w *MeasureWorker) Start(ctx context.Context) {
	if !w.timer.Stop() {
		util.DrainTimer(w.timer)
	}
	go w.run(ctx)
}

func (w *MeasureWorker) run(ctx context.Context) {
	defer close(w.done)
	defer w.timer.Stop()
	for {
		if next := w.nextDue(); next.IsZero() {
			util.ResetTimer(w.timer, time.Hour)
		} else {
			util.ResetTimer(w.timer, time.Until(next))
		}
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqQ:
			w.accept(ctx, req)
		case r := <-w.relQ:
			w.forget(ctx, r.id)
			r.run()
		case <-w.timer.C:
			w.collectDue(ctx)
		}
	}
}

func (w *MeasureWorker) accept(ctx context.Context, req halcore.MeasureReq) {
	if _, busy := w.inflight[req.ID]; busy {
		if req.Prio {
			w.again[req.ID] = true
		}
		return
	}
	w.trigger(ctx, &cycle{id: req.ID, adaptor: req.Adaptor})
}

// forget serves what is already queued, except requests for id, and drops
// the cycle in flight for id.
func (w *MeasureWorker) forget(ctx context.Context, id string) {
	for drained := false; !drained; {
		select {
		case req := <-w.reqQ:
			if req.ID != id {
				w.accept(ctx, req)
			}
		default:
			drained = true
		}
	}
	if _, ok := w.inflight[id]; !ok {
		return
	}
	delete(w.inflight, id)
	delete(w.again, id)
	kept := w.queue[:0]
	for _, c := range w.queue {
		if c.id != id {
			kept = append(kept, c)
		}
	}
	w.queue = kept
	lg.Debugf("%s: dropped cycle for %s", w.bus, id)
}

// trigger starts a cycle and queues its collect. Trigger failures are
// reported at once.
func (w *MeasureWorker) trigger(ctx context.Context, c *cycle) {
	tctx, cancel := context.WithTimeout(ctx, w.cfg.TriggerTimeout)
	after, err := c.adaptor.Trigger(tctx)
	cancel()
	if err != nil {
		lg.Debugf("%s: trigger %s: %v", w.bus, c.id, err)
		w.emit(ctx, halcore.Result{ID: c.id, Err: err})
		return
	}
	now := time.Now()
	c.started, c.due, c.retries = now, now.Add(after), 0
	w.inflight[c.id] = c
	w.queue = append(w.queue, c)
}

func (w *MeasureWorker) collectDue(ctx context.Context) {
	now := time.Now()
	due := w.queue
	w.queue = nil
	for _, c := range due {
		if now.Before(c.due) {
			w.queue = append(w.queue, c)
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, w.cfg.CollectTimeout)
		s, err := c.adaptor.Collect(cctx)
		cancel()
		switch {
		case err == nil:
			delete(w.inflight, c.id)
			delete(w.again, c.id)
			w.emit(ctx, halcore.Result{ID: c.id, Sample: s, Took: time.Since(c.started)})
		case errors.Is(err, halcore.ErrNotReady) && c.retries < w.cfg.MaxRetries:
			c.retries++
			c.due = now.Add(w.cfg.RetryBackoff)
			w.queue = append(w.queue, c)
		default:
			delete(w.inflight, c.id)
			lg.Debugf("%s: collect %s after %d retries: %v", w.bus, c.id, c.retries, err)
			w.emit(ctx, halcore.Result{ID: c.id, Err: err})
			if w.again[c.id] {
				delete(w.again, c.id)
				w.trigger(ctx, c)
			}
		}
	}
}

func (w *MeasureWorker) emit(ctx context.Context, r halcore.Result) {
	select {
	case w.sink <- r:
	case <-ctx.Done():
	}
}

func (w *MeasureWorker) nextDue() time.Time {
	var min time.Time
	for _, c := range w.queue {
		if min.IsZero() || c.due.Before(min) {
			min = c.due
		}
	}
	return min
}
