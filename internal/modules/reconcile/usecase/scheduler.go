package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Scheduler fires the reconciliation sweep once per day at the configured
// hour of the service's fixed offset.
type Scheduler struct {
	uc   *ReconcileUseCase
	hour int

	mu       sync.Mutex
	stopping bool
	stopCh   chan struct{}

	now func() time.Time
}

// NewScheduler creates a scheduler firing at the given hour (0-23).
func NewScheduler(uc *ReconcileUseCase, hour int) *Scheduler {
	return &Scheduler{
		uc:     uc,
		hour:   hour,
		stopCh: make(chan struct{}),
		now:    timex.Now,
	}
}

// nextRun returns the next boundary strictly after now: today's configured
// hour if still ahead, otherwise tomorrow's.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	local := now.In(timex.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, 0, 0, 0, timex.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start runs the trigger loop until Stop is called or ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info(ctx).Int("hour", s.hour).Msg("🕛 reconcile scheduler started")
	for {
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			logger.Info(ctx).Msg("🛑 reconcile scheduler stopping (graceful)")
			return
		}

		next := s.nextRun(s.now())
		timer := time.NewTimer(time.Until(next))
		logger.Info(ctx).Time("next_run", next).Msg("reconcile scheduled")

		select {
		case <-timer.C:
			s.uc.Run(ctx)
		case <-s.stopCh:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			logger.Info(ctx).Msg("🛑 reconcile scheduler stopping (context canceled)")
			return
		}
	}
}

// Stop signals the scheduler to exit after the current wait or run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return
	}
	s.stopping = true
	close(s.stopCh)
}
