package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/internal/modules/user/repository"
	"github.com/dLukachev/maxbot/pkg/logger"
)

// LedgerUseCase maintains the per-user cumulative active-time counter.
// Add and Subtract are true inverses: a negative amount handed to either
// entry point is redirected to the other with the sign flipped. The
// counter clamps at zero; excess subtraction is floored and the excess is
// discarded.
type LedgerUseCase struct {
	users *repository.UserRepository
}

// NewLedgerUseCase creates a new ledger use case
func NewLedgerUseCase(users *repository.UserRepository) *LedgerUseCase {
	return &LedgerUseCase{users: users}
}

// AddDuration adds amount to the user's cumulative active time and
// returns the updated user. An unknown user yields (nil, nil) rather
// than an error. Sub-second precision is truncated.
func (uc *LedgerUseCase) AddDuration(ctx context.Context, tid int64, amount time.Duration) (*domain.User, error) {
	if amount < 0 {
		return uc.SubtractDuration(ctx, tid, -amount)
	}
	return uc.apply(ctx, tid, int64(amount/time.Second))
}

// SubtractDuration removes amount from the user's cumulative active time,
// clamping at zero, and returns the updated user. An unknown user yields
// (nil, nil).
func (uc *LedgerUseCase) SubtractDuration(ctx context.Context, tid int64, amount time.Duration) (*domain.User, error) {
	if amount < 0 {
		return uc.AddDuration(ctx, tid, -amount)
	}
	return uc.apply(ctx, tid, -int64(amount/time.Second))
}

func (uc *LedgerUseCase) apply(ctx context.Context, tid int64, deltaSeconds int64) (*domain.User, error) {
	user, err := uc.users.AddDuration(ctx, tid, deltaSeconds)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			logger.Warn(ctx).Int64("tid", tid).Msg("ledger update for unknown user")
			return nil, nil
		}
		return nil, err
	}
	logger.Debug(ctx).
		Int64("tid", tid).
		Int64("delta_seconds", deltaSeconds).
		Int64("count_time", user.CountTime).
		Msg("ledger updated")
	return user, nil
}
