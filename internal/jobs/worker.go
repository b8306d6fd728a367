// Package jobs runs periodic background tasks next to the HTTP server.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one unit of periodic work.
type Task interface {
	Run(ctx context.Context) error
}

// Worker runs a Task immediately and then on every interval tick until its
// context ends or Stop is called. A run that panics is logged and the loop
// continues.
type Worker struct {
	task     Task
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// DefaultInterval replaces a non-positive interval passed to NewWorker.
const DefaultInterval = 5 * time.Minute

func NewWorker(task Task, interval time.Duration, logger zerolog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		task:     task,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start blocks running the task loop. It must be called at most once.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.Info().Dur("interval", w.interval).Msg("worker started")
	defer w.logger.Info().Msg("worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error().Str("panic", fmt.Sprint(p)).Msg("worker task panicked")
		}
	}()
	if err := w.task.Run(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("worker task failed")
	}
}

// Stop ends the loop and waits for an in-flight run to return. Calling Stop
// before Start prevents the loop from running at all.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	w.mu.Unlock()
}
