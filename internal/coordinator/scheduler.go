package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"
)

// defaultRefreshInterval is the scheduler tick when none is configured.
const defaultRefreshInterval = 30 * time.Second

// Scheduler drives periodic refresh cycles.
//
// It ticks at a fixed interval, skipping ticks while paused. An auth failure
// pauses the loop automatically so a rejected API key is not retried every
// interval; Resume restarts polling after reauthentication.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      Logger

	mu     sync.Mutex
	paused bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler for the given coordinator.
// A non-positive interval falls back to the 30s default.
func NewScheduler(c *Coordinator, interval time.Duration, logger Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		coordinator: c,
		interval:    interval,
		logger:      logger,
	}
}

// Start launches the refresh loop. It returns immediately; the loop runs
// until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info("refresh scheduler started", "interval", s.interval)
}

// run is the scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.IsPaused() {
				continue
			}

			res, err := s.coordinator.Refresh(ctx)
			if err != nil {
				if errors.Is(err, ErrAuthRequired) {
					s.logger.Error("pausing refresh loop until reauthentication", "error", err)
					s.Pause()
					continue
				}
				s.logger.Warn("scheduled refresh failed", "error", err)
				continue
			}

			s.logger.Debug("scheduled refresh complete",
				"refreshed", res.Refreshed,
				"stale", res.Stale,
				"duration", res.Duration,
			)
		}
	}
}

// Pause suspends refresh ticks. Idempotent.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume restarts refresh ticks. Idempotent.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// IsPaused reports whether refresh ticks are currently suspended.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop terminates the loop and waits for it to exit.
// Safe to call when the scheduler was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
