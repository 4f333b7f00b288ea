package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dLukachev/maxbot/internal/modules/user/domain"
	"gorm.io/gorm"
)

// UserRepository handles user data persistence.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. A unique-TID collision maps to
// domain.ErrIdentityTaken.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tid %d: %w", user.TID, domain.ErrIdentityTaken)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByTID retrieves a user by external identity.
func (r *UserRepository) GetByTID(ctx context.Context, tid int64) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where("tid = ?", tid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns users ordered by primary key, paginated by offset/limit.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	if err := r.db.WithContext(ctx).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateNames updates the display name and username.
func (r *UserRepository) UpdateNames(ctx context.Context, tid int64, name, username string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("tid = ?", tid).Updates(map[string]interface{}{
		"name":     name,
		"username": username,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes a user row. Goal and session cascade is handled by the
// use case so each module owns its own table.
func (r *UserRepository) Delete(ctx context.Context, tid int64) error {
	res := r.db.WithContext(ctx).Where("tid = ?", tid).Delete(&domain.User{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AddDuration applies a signed delta of whole seconds to the cumulative
// active-time counter as a single conditional update, clamping at zero.
// The arithmetic happens at write time inside the database, so concurrent
// callers cannot lose updates.
func (r *UserRepository) AddDuration(ctx context.Context, tid int64, deltaSeconds int64) (*domain.User, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("tid = ?", tid).
		Update("count_time", gorm.Expr(
			"CASE WHEN count_time + ? < 0 THEN 0 ELSE count_time + ? END",
			deltaSeconds, deltaSeconds,
		))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update duration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrUserNotFound
	}
	return r.GetByTID(ctx, tid)
}

// AddPoints applies a signed delta to the points counter as an atomic
// increment relative to the stored value. Points have no floor.
func (r *UserRepository) AddPoints(ctx context.Context, tid int64, delta int) (*domain.User, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("tid = ?", tid).
		Update("points", gorm.Expr("points + ?", delta))
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrUserNotFound
	}
	return r.GetByTID(ctx, tid)
}

// SetLevel stores a new level.
func (r *UserRepository) SetLevel(ctx context.Context, tid int64, level int) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("tid = ?", tid).Update("level", level)
	if res.Error != nil {
		return fmt.Errorf("failed to update level: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetState stores a new conversational state. Transition legality is the
// use case's concern.
func (r *UserRepository) SetState(ctx context.Context, tid int64, state domain.State) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("tid = ?", tid).Update("state", state)
	if res.Error != nil {
		return fmt.Errorf("failed to update state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite and postgres drivers word this differently
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
