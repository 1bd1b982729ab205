package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ReconcileFunc runs one reconcile pass.
type ReconcileFunc func(ctx context.Context) error

// Reconciler runs reconcile passes periodically and on demand. Passes never
// overlap, and a panic in one pass is logged instead of killing the daemon.
type Reconciler struct {
	mu     sync.Mutex
	logger *slog.Logger
	fn     ReconcileFunc

	interval time.Duration // 0 disables periodic passes
	trigger  chan struct{} // One pending on-demand pass at most
	reset    chan struct{} // Interval changed

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
	passes  int
}

// NewReconciler creates a Reconciler calling fn every interval.
func NewReconciler(fn ReconcileFunc, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		logger:   logger,
		fn:       fn,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		reset:    make(chan struct{}, 1),
	}
}

// Start begins the reconcile loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	interval := r.interval
	r.mu.Unlock()

	go r.loop(ctx, interval)
	r.logger.Debug("reconciler started", "interval", interval)
}

// Stop stops the loop and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	<-done
	r.logger.Debug("reconciler stopped")
}

// ReconcileNow requests a pass as soon as possible. Requests made while one
// is already pending are merged.
func (r *Reconciler) ReconcileNow() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// SetInterval changes the periodic interval. 0 disables periodic passes.
func (r *Reconciler) SetInterval(interval time.Duration) {
	r.mu.Lock()
	if r.interval == interval {
		r.mu.Unlock()
		return
	}
	r.interval = interval
	r.mu.Unlock()

	select {
	case r.reset <- struct{}{}:
	default:
	}
}

// Passes returns how many passes have completed, including failed ones.
func (r *Reconciler) Passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration) {
	defer close(r.doneCh)

	var ticker *time.Ticker
	var tick <-chan time.Time
	setTicker := func(d time.Duration) {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if d > 0 {
			ticker = time.NewTicker(d)
			tick = ticker.C
		}
	}
	setTicker(interval)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-r.reset:
			r.mu.Lock()
			d := r.interval
			r.mu.Unlock()
			setTicker(d)
			r.logger.Debug("reconcile interval changed", "interval", d)
		case <-r.trigger:
			r.run(ctx)
		case <-tick:
			r.run(ctx)
		}
	}
}

// run executes one pass, recovering from panics.
func (r *Reconciler) run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.passes++
		r.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reconcile pass panicked",
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := r.fn(ctx); err != nil {
		r.logger.Warn("reconcile pass failed", "error", err)
	}
}
