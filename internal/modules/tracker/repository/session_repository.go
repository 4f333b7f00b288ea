package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	"gorm.io/gorm"
)

// SessionRepository handles session data persistence.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	var session domain.Session
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetActive returns the user's open session, or nil when there is none.
func (r *SessionRepository) GetActive(ctx context.Context, tid int64) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Where("user_tid = ? AND active = ?", tid, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return &session, nil
}

// ListActive returns every open session system-wide.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	var sessions []*domain.Session
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return sessions, nil
}

// Close marks a session finished at end. Closing an already-closed
// session is a no-op reported via the boolean.
func (r *SessionRepository) Close(ctx context.Context, id int64, end time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"end_at": end, "active": false})
	if res.Error != nil {
		return false, fmt.Errorf("failed to close session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListIntersecting returns the user's sessions whose interval intersects
// [winStart, winEnd). Open sessions count as extending to the present, so
// they match any window their start precedes.
func (r *SessionRepository) ListIntersecting(ctx context.Context, tid int64, winStart, winEnd time.Time) ([]*domain.Session, error) {
	var sessions []*domain.Session
	if err := r.db.WithContext(ctx).
		Where("user_tid = ? AND start_at < ? AND (active = ? OR end_at > ?)", tid, winEnd, true, winStart).
		Order("start_at").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list intersecting sessions: %w", err)
	}
	return sessions, nil
}

// ListByGoal returns every session credited to a goal.
func (r *SessionRepository) ListByGoal(ctx context.Context, tid, goalID int64) ([]*domain.Session, error) {
	var sessions []*domain.Session
	if err := r.db.WithContext(ctx).
		Where("user_tid = ? AND goal_id = ?", tid, goalID).
		Order("start_at").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list goal sessions: %w", err)
	}
	return sessions, nil
}

// ListByUser returns the user's sessions ordered by ID, paginated.
func (r *SessionRepository) ListByUser(ctx context.Context, tid int64, limit, offset int) ([]*domain.Session, error) {
	var sessions []*domain.Session
	if err := r.db.WithContext(ctx).
		Where("user_tid = ?", tid).
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByUser removes every session of a user; part of the
// account-deletion cascade.
func (r *SessionRepository) DeleteByUser(ctx context.Context, tid int64) error {
	if err := r.db.WithContext(ctx).Where("user_tid = ?", tid).Delete(&domain.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}
