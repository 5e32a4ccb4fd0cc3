package worker

import (
	"context"
	"sync"
	"time"

	"github.com/apexam/assess-backend/internal/service"
	"github.com/rs/zerolog"
)

// Ticker delivers recurring ticks. Wraps time.Ticker in production; tests
// substitute a channel they drive by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Scheduler creates tickers. Injected so the worker can be tested without
// waiting on real timers.
type Scheduler interface {
	NewTicker(d time.Duration) Ticker
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealScheduler is the wall-clock Scheduler used in production.
type RealScheduler struct{}

func (RealScheduler) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// CleanupWorker runs the cleanup sweep on a fixed interval. It is owned by
// the composition root and controlled over the cleanup API — there is no
// process-global timer state.
type CleanupWorker struct {
	cleanup  *service.CleanupService
	interval time.Duration
	sched    Scheduler
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCleanupWorker creates a new CleanupWorker. A nil scheduler means real
// timers.
func NewCleanupWorker(cleanup *service.CleanupService, interval time.Duration, sched Scheduler, log zerolog.Logger) *CleanupWorker {
	if sched == nil {
		sched = RealScheduler{}
	}
	return &CleanupWorker{
		cleanup:  cleanup,
		interval: interval,
		sched:    sched,
		log:      log.With().Str("component", "cleanup_worker").Logger(),
	}
}

// Start launches the recurring sweep loop. Calling Start on a running worker
// is a no-op — there is never more than one ticker.
func (w *CleanupWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.log.Debug().Msg("Worker already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx, w.done)
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")
}

// Stop cancels the recurring timer and waits for the loop to exit. An
// in-flight sweep completes; only future ticks are cancelled. Safe to call
// when already stopped.
func (w *CleanupWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.log.Info().Msg("Worker stopped")
}

// Running reports whether the recurring timer is active.
func (w *CleanupWorker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *CleanupWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := w.sched.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// The sweep runs on a detached context so Stop cancels
			// future ticks without aborting database calls mid-sweep.
			w.cleanup.PerformCleanup(context.WithoutCancel(ctx))
		}
	}
}
