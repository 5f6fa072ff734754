package editlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sweeper periodically removes expired leases through Engine.Sweep.
type Sweeper struct {
	engine   *Engine
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper running at the engine's sweep interval.
func NewSweeper(engine *Engine) *Sweeper {
	return &Sweeper{
		engine:   engine,
		interval: engine.SweepInterval(),
	}
}

// Start launches the background worker. It sweeps once immediately, then on
// every tick.
//
// The worker runs on its own context so it outlives the caller's; Stop ends it.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("sweeper already started")
	}

	var workerCtx context.Context
	workerCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.done = make(chan struct{})

	go s.sweepWorker(workerCtx, s.done)
	return nil
}

// Stop cancels the worker and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	var (
		cancel = s.cancel
		done   = s.done
	)
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// sweepWorker runs Sweep on every tick until ctx is cancelled.
func (s *Sweeper) sweepWorker(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var ticker = time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.engine.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.engine.options.logger.Error("Failed to sweep expired leases", "error", err)
	}
}
