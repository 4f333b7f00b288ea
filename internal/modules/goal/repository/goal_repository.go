package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dLukachev/maxbot/internal/modules/goal/domain"
	"github.com/dLukachev/maxbot/pkg/timex"
	"gorm.io/gorm"
)

// GoalRepository handles goal data persistence.
type GoalRepository struct {
	db *gorm.DB
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Create creates a single goal.
func (r *GoalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	if err := r.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// BatchCreate creates several goals in one statement.
func (r *GoalRepository) BatchCreate(ctx context.Context, goals []*domain.Goal) error {
	if len(goals) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&goals).Error; err != nil {
		return fmt.Errorf("failed to create goals: %w", err)
	}
	return nil
}

// GetByID retrieves a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*domain.Goal, error) {
	var goal domain.Goal
	if err := r.db.WithContext(ctx).First(&goal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &goal, nil
}

// ListByUser returns the user's goals ordered by ID, paginated.
func (r *GoalRepository) ListByUser(ctx context.Context, tid int64, limit, offset int) ([]*domain.Goal, error) {
	var goals []*domain.Goal
	if err := r.db.WithContext(ctx).
		Where("user_tid = ?", tid).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return goals, nil
}

// ListOnDay returns the user's goals created inside the calendar day that
// contains at, in the service's fixed offset.
func (r *GoalRepository) ListOnDay(ctx context.Context, tid int64, at time.Time) ([]*domain.Goal, error) {
	dayStart, dayEnd := timex.DayWindow(at)
	var goals []*domain.Goal
	if err := r.db.WithContext(ctx).
		Where("user_tid = ? AND created_at >= ? AND created_at < ?", tid, dayStart, dayEnd).
		Order("id").
		Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("failed to list goals on day: %w", err)
	}
	return goals, nil
}

// CountOnDay reports how many goals the user created inside the calendar
// day that contains at.
func (r *GoalRepository) CountOnDay(ctx context.Context, tid int64, at time.Time) (int64, error) {
	dayStart, dayEnd := timex.DayWindow(at)
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Goal{}).
		Where("user_tid = ? AND created_at >= ? AND created_at < ?", tid, dayStart, dayEnd).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count goals on day: %w", err)
	}
	return count, nil
}

// UpdateDescription replaces the goal text.
func (r *GoalRepository) UpdateDescription(ctx context.Context, id int64, description string) error {
	res := r.db.WithContext(ctx).Model(&domain.Goal{}).Where("id = ?", id).Update("description", description)
	if res.Error != nil {
		return fmt.Errorf("failed to update goal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

// SetDone flips the completion flag.
func (r *GoalRepository) SetDone(ctx context.Context, id int64, done bool) error {
	res := r.db.WithContext(ctx).Model(&domain.Goal{}).Where("id = ?", id).Update("is_done", done)
	if res.Error != nil {
		return fmt.Errorf("failed to update goal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

// Delete removes a single goal.
func (r *GoalRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Goal{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete goal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

// BulkDelete removes the given goals of one user and reports how many
// rows went away. IDs of other users are ignored.
func (r *GoalRepository) BulkDelete(ctx context.Context, tid int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_tid = ? AND id IN ?", tid, ids).Delete(&domain.Goal{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to bulk delete goals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteByUser removes every goal of a user; part of the account-deletion
// cascade.
func (r *GoalRepository) DeleteByUser(ctx context.Context, tid int64) error {
	if err := r.db.WithContext(ctx).Where("user_tid = ?", tid).Delete(&domain.Goal{}).Error; err != nil {
		return fmt.Errorf("failed to delete user goals: %w", err)
	}
	return nil
}
