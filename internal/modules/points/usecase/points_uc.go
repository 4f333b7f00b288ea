package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dLukachev/maxbot/internal/config"
	goaldomain "github.com/dLukachev/maxbot/internal/modules/goal/domain"
	userdomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/pkg/logger"
)

// GoalLister fetches the goals a user set on a given calendar day.
type GoalLister interface {
	ListOnDay(ctx context.Context, tid int64, at time.Time) ([]*goaldomain.Goal, error)
}

// ActiveTimer measures the user's active time inside a calendar day.
type ActiveTimer interface {
	TotalActiveOnDate(ctx context.Context, tid int64, at time.Time) (time.Duration, error)
}

// PointsStore applies points and level changes to the user row.
type PointsStore interface {
	AddPoints(ctx context.Context, tid int64, delta int) (*userdomain.User, error)
	SetLevel(ctx context.Context, tid int64, level int) error
}

// DailyResult describes one settled day for one user.
type DailyResult struct {
	Delta     int  // signed points change applied
	Points    int  // balance after applying
	Level     int  // level after applying
	LeveledUp bool // true when the level rose this settlement
	HadGoals  bool
	Done      int
	Total     int
	Active    time.Duration
}

// PointsUseCase settles the daily points formula.
type PointsUseCase struct {
	goals   GoalLister
	tracker ActiveTimer
	users   PointsStore
	cfg     config.PointsConfig
}

// NewPointsUseCase creates a new points use case.
func NewPointsUseCase(goals GoalLister, tracker ActiveTimer, users PointsStore, cfg config.PointsConfig) *PointsUseCase {
	return &PointsUseCase{goals: goals, tracker: tracker, users: users, cfg: cfg}
}

// ComputeDaily settles the given calendar day for the user.
//
// A day without goals costs the flat penalty and ends the computation,
// with no level check. Otherwise the delta starts at zero, the active-time
// bonus is added when the day's active time exceeds the threshold, and the
// completion term floor(done/total * bonus * boost) is added on top. The
// balance update is a single atomic increment, so concurrent manual
// adjustments are never lost. The level only ever rises.
func (uc *PointsUseCase) ComputeDaily(ctx context.Context, tid int64, day time.Time) (*DailyResult, error) {
	goals, err := uc.goals.ListOnDay(ctx, tid, day)
	if err != nil {
		return nil, err
	}

	if len(goals) == 0 {
		user, err := uc.users.AddPoints(ctx, tid, -uc.cfg.NoGoalPenalty)
		if err != nil {
			return nil, fmt.Errorf("failed to apply no-goal penalty: %w", err)
		}
		logger.Info(ctx).
			Int64("tid", tid).
			Int("delta", -uc.cfg.NoGoalPenalty).
			Int("points", user.Points).
			Msg("day settled without goals")
		return &DailyResult{
			Delta:  -uc.cfg.NoGoalPenalty,
			Points: user.Points,
			Level:  user.Level,
		}, nil
	}

	active, err := uc.tracker.TotalActiveOnDate(ctx, tid, day)
	if err != nil {
		return nil, err
	}

	delta := 0
	if active > uc.cfg.BonusThreshold {
		delta += uc.cfg.BonusPoints
	}

	done := 0
	for _, g := range goals {
		if g.IsDone {
			done++
		}
	}
	ratio := float64(done) / float64(len(goals))
	delta += int(ratio * float64(uc.cfg.BonusPoints) * uc.cfg.CompletionBoost)

	user, err := uc.users.AddPoints(ctx, tid, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to apply daily points: %w", err)
	}

	result := &DailyResult{
		Delta:    delta,
		Points:   user.Points,
		Level:    user.Level,
		HadGoals: true,
		Done:     done,
		Total:    len(goals),
		Active:   active,
	}

	if next := uc.cfg.LevelFor(user.Points); next > user.Level {
		if err := uc.users.SetLevel(ctx, tid, next); err != nil {
			return nil, fmt.Errorf("failed to raise level: %w", err)
		}
		result.Level = next
		result.LeveledUp = true
		logger.Info(ctx).Int64("tid", tid).Int("level", next).Msg("level up 🎉")
	}

	logger.Info(ctx).
		Int64("tid", tid).
		Int("delta", delta).
		Int("points", result.Points).
		Int("done", done).
		Int("total", len(goals)).
		Dur("active", active).
		Msg("day settled")
	return result, nil
}
