package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/dLukachev/maxbot/internal/modules/goal/domain"
	"github.com/dLukachev/maxbot/internal/modules/goal/repository"
	"github.com/dLukachev/maxbot/pkg/logger"
)

// GuardInvalidator drops the cached "has goals today" verdict for a user
// after their goal set changes.
type GuardInvalidator interface {
	Invalidate(ctx context.Context, tid int64)
}

// GateClearer releases a user held in the after-midnight goal-entry gate.
type GateClearer interface {
	ClearGoalGate(ctx context.Context, tid int64) error
}

// GoalUseCase handles goal entry, completion tracking and deletion.
type GoalUseCase struct {
	goals *repository.GoalRepository
	guard GuardInvalidator
	gate  GateClearer
}

// NewGoalUseCase creates a new goal use case. guard and gate may be nil.
func NewGoalUseCase(goals *repository.GoalRepository, guard GuardInvalidator, gate GateClearer) *GoalUseCase {
	return &GoalUseCase{goals: goals, guard: guard, gate: gate}
}

// AddFromText splits a comma-separated goal list and stores each entry.
// Blank entries are skipped.
func (uc *GoalUseCase) AddFromText(ctx context.Context, tid int64, text string) ([]*domain.Goal, error) {
	var goals []*domain.Goal
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		goals = append(goals, &domain.Goal{UserTID: tid, Description: part})
	}
	if len(goals) == 0 {
		return nil, nil
	}
	if err := uc.goals.BatchCreate(ctx, goals); err != nil {
		return nil, err
	}
	if uc.guard != nil {
		uc.guard.Invalidate(ctx, tid)
	}
	if uc.gate != nil {
		// entering goals is what ends the post-midnight gate
		if err := uc.gate.ClearGoalGate(ctx, tid); err != nil {
			logger.Warn(ctx).Err(err).Int64("tid", tid).Msg("goal gate not cleared")
		}
	}
	logger.Info(ctx).Int64("tid", tid).Int("count", len(goals)).Msg("goals added")
	return goals, nil
}

// ListToday returns the user's goals for the calendar day containing now.
func (uc *GoalUseCase) ListToday(ctx context.Context, tid int64, now time.Time) ([]*domain.Goal, error) {
	return uc.goals.ListOnDay(ctx, tid, now)
}

// List returns the user's goals with offset pagination.
func (uc *GoalUseCase) List(ctx context.Context, tid int64, limit, offset int) ([]*domain.Goal, error) {
	return uc.goals.ListByUser(ctx, tid, limit, offset)
}

// Redescribe replaces a goal's text.
func (uc *GoalUseCase) Redescribe(ctx context.Context, id int64, description string) error {
	return uc.goals.UpdateDescription(ctx, id, description)
}

// SyncDone makes today's completion flags match the desired set: goals in
// the set are marked done, goals outside it are unmarked. It returns the
// number of goals marked and unmarked.
func (uc *GoalUseCase) SyncDone(ctx context.Context, tid int64, now time.Time, desired []int64) (int, int, error) {
	today, err := uc.goals.ListOnDay(ctx, tid, now)
	if err != nil {
		return 0, 0, err
	}

	want := make(map[int64]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}

	marked, unmarked := 0, 0
	for _, g := range today {
		switch {
		case want[g.ID] && !g.IsDone:
			if err := uc.goals.SetDone(ctx, g.ID, true); err != nil {
				return marked, unmarked, err
			}
			marked++
		case !want[g.ID] && g.IsDone:
			if err := uc.goals.SetDone(ctx, g.ID, false); err != nil {
				return marked, unmarked, err
			}
			unmarked++
		}
	}
	return marked, unmarked, nil
}

// BulkDelete removes the given goals of the user and reports the count.
func (uc *GoalUseCase) BulkDelete(ctx context.Context, tid int64, ids []int64) (int64, error) {
	deleted, err := uc.goals.BulkDelete(ctx, tid, ids)
	if err != nil {
		return 0, err
	}
	if deleted > 0 && uc.guard != nil {
		uc.guard.Invalidate(ctx, tid)
	}
	return deleted, nil
}
