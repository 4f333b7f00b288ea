// Package usecase implements the end-of-day reconciliation sweep: close
// every open session, settle yesterday's points for every user and reset
// everyone to the goal-setting state.
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/dLukachev/maxbot/internal/config"
	"github.com/dLukachev/maxbot/internal/modules/notify"
	pointsuc "github.com/dLukachev/maxbot/internal/modules/points/usecase"
	userdomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// NewDayPrompt is sent to every user once their day is settled.
const NewDayPrompt = "Вот и закончился день, начался новый, пора ставить цели!"

// UserPager lists users in stable id order, a page at a time.
type UserPager interface {
	List(ctx context.Context, limit, offset int) ([]*userdomain.User, error)
	SetState(ctx context.Context, tid int64, state userdomain.State) error
}

// SessionCloser force-closes every open session system-wide.
type SessionCloser interface {
	ForceCloseAll(ctx context.Context) (int, int, error)
}

// Settler applies the daily points formula for one user and day.
type Settler interface {
	ComputeDaily(ctx context.Context, tid int64, day time.Time) (*pointsuc.DailyResult, error)
}

// Stats summarizes one reconciliation run.
type Stats struct {
	Users          int
	Failed         int
	SessionsClosed int
	Elapsed        time.Duration
}

// ReconcileUseCase runs the daily sweep.
type ReconcileUseCase struct {
	users    UserPager
	sessions SessionCloser
	settler  Settler
	notifier notify.Notifier
	cfg      config.ReconcileConfig
	now      func() time.Time
}

// NewReconcileUseCase creates a new reconcile use case.
func NewReconcileUseCase(users UserPager, sessions SessionCloser, settler Settler, notifier notify.Notifier, cfg config.ReconcileConfig) *ReconcileUseCase {
	return &ReconcileUseCase{
		users:    users,
		sessions: sessions,
		settler:  settler,
		notifier: notifier,
		cfg:      cfg,
		now:      timex.Now,
	}
}

// Run performs one full sweep. Open sessions are closed first so their
// time lands in the ledger before settlement; then users are paged
// through and settled for the day that just ended, each one in
// isolation. A panic anywhere aborts only this run.
func (uc *ReconcileUseCase) Run(ctx context.Context) (stats Stats) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx).Interface("panic", r).Msg("reconciliation run aborted by panic")
		}
	}()

	runStart := uc.now()
	// the day being settled is the one that just ended
	day := runStart.Add(-time.Second)

	logger.Info(ctx).Time("run_start", runStart).Msg("reconciliation started 🌙")

	closed, closeFailed, err := uc.sessions.ForceCloseAll(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("force-close sweep failed, settling anyway")
	}
	stats.SessionsClosed = closed
	stats.Failed += closeFailed

	pageSize := uc.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	concurrency := uc.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for offset := 0; ; offset += pageSize {
		users, err := uc.users.List(ctx, pageSize, offset)
		if err != nil {
			logger.Error(ctx).Err(err).Int("offset", offset).Msg("failed to page users, stopping sweep")
			break
		}

		for _, u := range users {
			wg.Add(1)
			sem <- struct{}{}
			go func(tid int64) {
				defer wg.Done()
				defer func() { <-sem }()
				ok := uc.settleUser(ctx, tid, day)
				mu.Lock()
				stats.Users++
				if !ok {
					stats.Failed++
				}
				mu.Unlock()
			}(u.TID)
		}

		if len(users) < pageSize {
			break
		}
	}
	wg.Wait()

	stats.Elapsed = uc.now().Sub(runStart)
	logger.Info(ctx).
		Int("users", stats.Users).
		Int("failed", stats.Failed).
		Int("sessions_closed", stats.SessionsClosed).
		Dur("elapsed", stats.Elapsed).
		Msg("reconciliation finished")
	return stats
}

func (uc *ReconcileUseCase) settleUser(ctx context.Context, tid int64, day time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx).Int64("tid", tid).Interface("panic", r).Msg("panic settling user")
			ok = false
		}
	}()

	result, err := uc.settler.ComputeDaily(ctx, tid, day)
	if err != nil {
		logger.Error(ctx).Err(err).Int64("tid", tid).Msg("failed to settle user")
		return false
	}

	if err := uc.users.SetState(ctx, tid, userdomain.StateAwaitingGoals); err != nil {
		logger.Error(ctx).Err(err).Int64("tid", tid).Msg("failed to reset user state")
		return false
	}

	if err := uc.notifier.Send(ctx, tid, NewDayPrompt); err != nil {
		// the day is settled, only the prompt is lost
		logger.Warn(ctx).Err(err).Int64("tid", tid).Msg("failed to send new-day prompt")
	}

	logger.Debug(ctx).
		Int64("tid", tid).
		Int("delta", result.Delta).
		Bool("level_up", result.LeveledUp).
		Msg("user settled")
	return true
}
