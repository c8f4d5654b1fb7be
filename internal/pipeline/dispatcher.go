package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Job is one unit of background work. Its error is logged and dropped.
type Job func(ctx context.Context) error

// Dispatcher runs jobs on their own goroutines and lets shutdown wait for
// the ones still in flight.
type Dispatcher struct {
	logger   *slog.Logger
	wg       sync.WaitGroup
	inFlight atomic.Int64
	base     context.Context
	cancel   context.CancelFunc
}

// NewDispatcher creates a dispatcher. Jobs run detached from the request
// that scheduled them.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{logger: logger, base: base, cancel: cancel}
}

// Dispatch schedules job and returns its id immediately.
func (d *Dispatcher) Dispatch(name string, job Job) string {
	id := uuid.NewString()
	d.wg.Add(1)
	d.inFlight.Add(1)

	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Background job panicked", "job", name, "job_id", id, "panic", r)
			}
		}()

		if err := job(d.base); err != nil {
			d.logger.Error("Background job failed", "job", name, "job_id", id, "error", err)
		}
	}()

	return id
}

// InFlight is the number of jobs still running.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Wait blocks until every job has returned or ctx is done. When ctx ends
// first, running jobs are cancelled and ctx.Err is returned.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("Abandoning background jobs at shutdown", "in_flight", d.InFlight())
		d.cancel()
		return ctx.Err()
	}
}
