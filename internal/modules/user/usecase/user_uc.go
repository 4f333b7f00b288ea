package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/dLukachev/maxbot/internal/config"
	"github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/internal/modules/user/repository"
	"github.com/dLukachev/maxbot/pkg/logger"
)

// Purger removes all records owned by a user; implemented by the goal and
// session repositories so deletion cascades without cross-module imports.
type Purger interface {
	DeleteByUser(ctx context.Context, tid int64) error
}

// UserUseCase handles registration, profile summaries, state transitions
// and account deletion.
type UserUseCase struct {
	users   *repository.UserRepository
	points  config.PointsConfig
	purgers []Purger
}

// NewUserUseCase creates a new user use case. The purgers run in order on
// account deletion, before the user row itself is removed.
func NewUserUseCase(users *repository.UserRepository, points config.PointsConfig, purgers ...Purger) *UserUseCase {
	return &UserUseCase{users: users, points: points, purgers: purgers}
}

// Register creates a user on first contact. The boolean reports whether a
// new account was created; an existing user is returned as-is.
func (uc *UserUseCase) Register(ctx context.Context, tid int64, name, username string) (*domain.User, bool, error) {
	user, err := uc.users.GetByTID(ctx, tid)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	user = &domain.User{
		TID:      tid,
		Name:     name,
		Username: username,
		Points:   domain.DefaultPoints,
		Level:    domain.DefaultLevel,
		State:    domain.StateIdle,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrIdentityTaken) {
			// lost a registration race, the row exists now
			existing, getErr := uc.users.GetByTID(ctx, tid)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	logger.Info(ctx).Int64("tid", tid).Str("username", username).Msg("user registered")
	return user, true, nil
}

// Get returns the user for the given external identity.
func (uc *UserUseCase) Get(ctx context.Context, tid int64) (*domain.User, error) {
	return uc.users.GetByTID(ctx, tid)
}

// Profile builds the account summary: level, points, distance to the next
// threshold and total active time.
func (uc *UserUseCase) Profile(ctx context.Context, tid int64) (*domain.Profile, error) {
	user, err := uc.users.GetByTID(ctx, tid)
	if err != nil {
		return nil, err
	}

	p := &domain.Profile{
		TID:         user.TID,
		Name:        user.Name,
		Level:       user.Level,
		Points:      user.Points,
		TotalActive: user.TotalActive(),
	}
	if next, ok := uc.points.NextThreshold(user.Points); ok {
		p.ToNextLevel = next - user.Points
	} else {
		p.MaxLevel = true
	}
	return p, nil
}

// ChangeState moves the user's conversational state, rejecting illegal
// transitions.
func (uc *UserUseCase) ChangeState(ctx context.Context, tid int64, next domain.State) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown state %q", domain.ErrBadTransition, next)
	}
	user, err := uc.users.GetByTID(ctx, tid)
	if err != nil {
		return err
	}
	if !user.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrBadTransition, user.State, next)
	}
	return uc.users.SetState(ctx, tid, next)
}

// ClearGoalGate returns a user parked in awaiting_goals to idle once
// goals for the new day exist. Any other state is left untouched, so a
// goal added mid-session never idles an active user.
func (uc *UserUseCase) ClearGoalGate(ctx context.Context, tid int64) error {
	user, err := uc.users.GetByTID(ctx, tid)
	if err != nil {
		return err
	}
	if user.State != domain.StateAwaitingGoals {
		return nil
	}
	return uc.users.SetState(ctx, tid, domain.StateIdle)
}

// Delete removes the account and everything it owns.
func (uc *UserUseCase) Delete(ctx context.Context, tid int64) error {
	for _, p := range uc.purgers {
		if err := p.DeleteByUser(ctx, tid); err != nil {
			return fmt.Errorf("cascade failed: %w", err)
		}
	}
	if err := uc.users.Delete(ctx, tid); err != nil {
		return err
	}
	logger.Info(ctx).Int64("tid", tid).Msg("user deleted")
	return nil
}
