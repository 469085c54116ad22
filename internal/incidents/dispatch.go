package incidents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Refresher is the unit of work run by a Dispatcher.
type Refresher interface {
	Refresh(ctx context.Context) error
}

const errBufferSize = 16

// Dispatcher runs topic refreshes in the background. Triggers arriving while a
// refresh is pending coalesce into one run. Failures never reach the caller of
// Trigger; they are delivered to the error handler, which logs by default.
type Dispatcher struct {
	refresher Refresher
	timeout   time.Duration
	onError   func(error)

	queue chan struct{}
	errs  chan error
	wg    sync.WaitGroup
}

// NewDispatcher creates a Dispatcher that bounds each refresh by timeout.
func NewDispatcher(r Refresher, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		refresher: r,
		timeout:   timeout,
		onError: func(err error) {
			slog.Error("topic refresh failed", "error", err)
		},
		queue: make(chan struct{}, 1),
		errs:  make(chan error, errBufferSize),
	}
}

// WithErrorHandler replaces the default logging error handler. It must be
// called before Start.
func (d *Dispatcher) WithErrorHandler(fn func(error)) *Dispatcher {
	d.onError = fn
	return d
}

// Start launches the worker and the error drain. Both exit once ctx is
// cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		defer close(d.errs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.queue:
				d.run(ctx)
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		for err := range d.errs {
			d.onError(err)
		}
	}()
}

// Trigger requests a refresh without blocking.
func (d *Dispatcher) Trigger() {
	select {
	case d.queue <- struct{}{}:
	default:
	}
}

// Wait blocks until the goroutines started by Start have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	runID := uuid.NewString()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in topic refresh", "error", r, "run_id", runID)
			d.report(fmt.Errorf("topic refresh %s: panic: %v", runID, r))
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.refresher.Refresh(rctx); err != nil {
		d.report(fmt.Errorf("topic refresh %s: %w", runID, err))
		return
	}
	slog.Debug("topic refreshed", "run_id", runID, "duration", time.Since(start))
}

func (d *Dispatcher) report(err error) {
	select {
	case d.errs <- err:
	default:
		slog.Warn("topic refresh error dropped", "error", err)
	}
}
