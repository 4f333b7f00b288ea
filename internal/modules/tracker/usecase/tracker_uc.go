// Package usecase implements the session tracking engine: start/stop of
// work intervals, windowed active-time totals and the batch force-close
// used by the midnight job.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dLukachev/maxbot/internal/modules/notify"
	"github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	"github.com/dLukachev/maxbot/internal/modules/tracker/repository"
	userdomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// Ledger credits and debits the per-user cumulative active-time counter.
type Ledger interface {
	AddDuration(ctx context.Context, tid int64, amount time.Duration) (*userdomain.User, error)
	SubtractDuration(ctx context.Context, tid int64, amount time.Duration) (*userdomain.User, error)
}

// States moves a user's conversational state.
type States interface {
	ChangeState(ctx context.Context, tid int64, next userdomain.State) error
}

// userLocks hands out one mutex per user so check-then-act sequences on
// the same user serialize. The map grows with the user population and is
// never shed; entries are a mutex each.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *userLocks) get(tid int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[tid]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tid] = m
	}
	return m
}

// TrackerUseCase handles timed work intervals.
type TrackerUseCase struct {
	sessions *repository.SessionRepository
	ledger   Ledger
	states   States
	notifier notify.Notifier
	locks    *userLocks
	now      func() time.Time
}

// NewTrackerUseCase creates a new tracker use case.
func NewTrackerUseCase(sessions *repository.SessionRepository, ledger Ledger, states States, notifier notify.Notifier) *TrackerUseCase {
	return &TrackerUseCase{
		sessions: sessions,
		ledger:   ledger,
		states:   states,
		notifier: notifier,
		locks:    newUserLocks(),
		now:      timex.Now,
	}
}

// Start opens a work interval for the user. If one is already open it is
// returned unchanged and the boolean is false; two concurrent starts for
// the same user serialize on a per-user lock, so exactly one wins.
func (uc *TrackerUseCase) Start(ctx context.Context, tid int64, goalID *int64) (*domain.Session, bool, error) {
	mu := uc.locks.get(tid)
	mu.Lock()
	defer mu.Unlock()

	existing, err := uc.sessions.GetActive(ctx, tid)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	session := domain.NewSession(tid, goalID, uc.now())
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, false, err
	}
	uc.setState(ctx, tid, userdomain.StateActive)

	logger.Info(ctx).Int64("tid", tid).Int64("session_id", session.ID).Msg("session started")
	return session, true, nil
}

// Stop closes the user's open session, credits the elapsed time to the
// ledger and returns the elapsed duration for display.
func (uc *TrackerUseCase) Stop(ctx context.Context, tid int64) (time.Duration, error) {
	mu := uc.locks.get(tid)
	mu.Lock()
	defer mu.Unlock()

	active, err := uc.sessions.GetActive(ctx, tid)
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, domain.ErrNoActiveSession
	}

	now := uc.now()
	elapsed := active.Elapsed(now)
	closed, err := uc.sessions.Close(ctx, active.ID, now)
	if err != nil {
		return 0, err
	}
	if !closed {
		return 0, domain.ErrNoActiveSession
	}

	if _, err := uc.ledger.AddDuration(ctx, tid, elapsed); err != nil {
		return 0, fmt.Errorf("session closed but ledger credit failed: %w", err)
	}
	uc.setState(ctx, tid, userdomain.StateIdle)

	logger.Info(ctx).
		Int64("tid", tid).
		Int64("session_id", active.ID).
		Dur("elapsed", elapsed).
		Msg("session stopped")
	return elapsed, nil
}

// ForceCloseAll closes every open session system-wide, crediting each to
// the ledger and notifying its owner. Every record is processed
// independently: a failure on one never aborts the rest. Returns how many
// sessions were closed and how many records hit an error.
func (uc *TrackerUseCase) ForceCloseAll(ctx context.Context) (int, int, error) {
	sessions, err := uc.sessions.ListActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	closedCount, failed := 0, 0
	for _, s := range sessions {
		if uc.forceCloseOne(ctx, s) {
			closedCount++
		} else {
			failed++
		}
	}

	logger.Info(ctx).
		Int("closed", closedCount).
		Int("failed", failed).
		Msg("force-close sweep finished")
	return closedCount, failed, nil
}

func (uc *TrackerUseCase) forceCloseOne(ctx context.Context, s *domain.Session) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx).Int64("session_id", s.ID).Interface("panic", r).Msg("panic closing session")
			ok = false
		}
	}()

	now := uc.now()
	elapsed := s.Elapsed(now)
	closed, err := uc.sessions.Close(ctx, s.ID, now)
	if err != nil {
		logger.Error(ctx).Err(err).Int64("session_id", s.ID).Msg("failed to close session")
		return false
	}
	if !closed {
		// already closed by the user in the meantime
		return true
	}

	if _, err := uc.ledger.AddDuration(ctx, s.UserTID, elapsed); err != nil {
		logger.Error(ctx).Err(err).Int64("tid", s.UserTID).Msg("failed to credit force-closed session")
		return false
	}
	uc.setState(ctx, s.UserTID, userdomain.StateIdle)

	text := fmt.Sprintf("Твоя сессия автоматически завершена и учтена!\nДобавлено: %s", timex.FormatDuration(elapsed))
	if err := uc.notifier.Send(ctx, s.UserTID, text); err != nil {
		// the session is closed and credited, only the message is lost
		logger.Warn(ctx).Err(err).Int64("tid", s.UserTID).Msg("failed to notify about force-close")
	}
	return true
}

// TotalActiveOnDate sums, over all sessions intersecting the calendar day
// containing at, the overlap between the session and the day window.
// Sessions are clipped at both window edges; open sessions extend to now.
func (uc *TrackerUseCase) TotalActiveOnDate(ctx context.Context, tid int64, at time.Time) (time.Duration, error) {
	winStart, winEnd := timex.DayWindow(at)
	return uc.sumWindow(ctx, tid, winStart, winEnd)
}

// TotalActiveForWeek is TotalActiveOnDate over the 7-day window ending
// with the day that contains at.
func (uc *TrackerUseCase) TotalActiveForWeek(ctx context.Context, tid int64, at time.Time) (time.Duration, error) {
	winStart, winEnd := timex.WeekWindow(at)
	return uc.sumWindow(ctx, tid, winStart, winEnd)
}

func (uc *TrackerUseCase) sumWindow(ctx context.Context, tid int64, winStart, winEnd time.Time) (time.Duration, error) {
	sessions, err := uc.sessions.ListIntersecting(ctx, tid, winStart, winEnd)
	if err != nil {
		return 0, err
	}
	now := uc.now()
	var total time.Duration
	for _, s := range sessions {
		total += timex.Overlap(s.StartAt, s.EndOrNow(now), winStart, winEnd)
	}
	return total, nil
}

// TotalActiveForGoal sums the full length of every session credited to
// the goal, open sessions counted up to now.
func (uc *TrackerUseCase) TotalActiveForGoal(ctx context.Context, tid, goalID int64) (time.Duration, error) {
	sessions, err := uc.sessions.ListByGoal(ctx, tid, goalID)
	if err != nil {
		return 0, err
	}
	now := uc.now()
	var total time.Duration
	for _, s := range sessions {
		total += s.Elapsed(now)
	}
	return total, nil
}

// AdjustGoalTime applies a signed manual correction. A positive delta
// records a retroactive closed session of that length ending now; a
// negative delta records a zero-length marker and debits the ledger.
// History is never edited. Returns the updated user, or nil when the
// user does not exist.
func (uc *TrackerUseCase) AdjustGoalTime(ctx context.Context, tid int64, goalID *int64, delta time.Duration) (*userdomain.User, error) {
	if delta == 0 {
		return uc.ledger.AddDuration(ctx, tid, 0)
	}

	length := delta
	if length < 0 {
		length = 0
	}
	session := domain.NewRetroactive(tid, goalID, uc.now(), length)
	if err := uc.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	user, err := uc.ledger.AddDuration(ctx, tid, delta)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).
		Int64("tid", tid).
		Dur("delta", delta).
		Int64("session_id", session.ID).
		Msg("manual time adjustment")
	return user, nil
}

// setState is best-effort: the conversational tag trails the session
// facts and must not fail them.
func (uc *TrackerUseCase) setState(ctx context.Context, tid int64, next userdomain.State) {
	if uc.states == nil {
		return
	}
	if err := uc.states.ChangeState(ctx, tid, next); err != nil {
		logger.Warn(ctx).Err(err).Int64("tid", tid).Str("state", string(next)).Msg("state change skipped")
	}
}
