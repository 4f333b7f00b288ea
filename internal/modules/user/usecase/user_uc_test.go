package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dLukachev/maxbot/internal/config"
	goaldomain "github.com/dLukachev/maxbot/internal/modules/goal/domain"
	goalrepo "github.com/dLukachev/maxbot/internal/modules/goal/repository"
	trackerdomain "github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	trackerrepo "github.com/dLukachev/maxbot/internal/modules/tracker/repository"
	"github.com/dLukachev/maxbot/internal/modules/user/domain"
	"github.com/dLukachev/maxbot/internal/modules/user/repository"
	"github.com/dLukachev/maxbot/pkg/timex"
)

func testPoints(t *testing.T) config.PointsConfig {
	t.Helper()
	levels, err := config.ParseLevels("100:2,250:3")
	require.NoError(t, err)
	return config.PointsConfig{
		NoGoalPenalty:   10,
		BonusThreshold:  3 * time.Hour,
		BonusPoints:     3,
		CompletionBoost: 0.6314,
		Levels:          levels,
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	uc := NewUserUseCase(repo, testPoints(t))
	ctx := context.Background()

	user, created, err := uc.Register(ctx, 42, "Лука", "luka")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.DefaultPoints, user.Points)
	assert.Equal(t, domain.StateIdle, user.State)

	again, created, err := uc.Register(ctx, 42, "Other", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Лука", again.Name)
}

func TestProfileToNextLevel(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	uc := NewUserUseCase(repo, testPoints(t))
	ctx := context.Background()

	_, _, err := uc.Register(ctx, 42, "Лука", "luka")
	require.NoError(t, err)

	p, err := uc.Profile(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Points)
	assert.Equal(t, 50, p.ToNextLevel)
	assert.False(t, p.MaxLevel)

	_, err = repo.AddPoints(ctx, 42, 300)
	require.NoError(t, err)
	p, err = uc.Profile(ctx, 42)
	require.NoError(t, err)
	assert.True(t, p.MaxLevel)
	assert.Zero(t, p.ToNextLevel)
}

func TestChangeStateRejectsIllegalTransition(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	uc := NewUserUseCase(repo, testPoints(t))
	ctx := context.Background()
	_, _, err := uc.Register(ctx, 42, "", "")
	require.NoError(t, err)

	require.NoError(t, uc.ChangeState(ctx, 42, domain.StateAwaitingGoals))

	// the only way out of awaiting_goals is back to idle
	err = uc.ChangeState(ctx, 42, domain.StateActive)
	assert.ErrorIs(t, err, domain.ErrBadTransition)

	err = uc.ChangeState(ctx, 42, domain.State("sleeping"))
	assert.ErrorIs(t, err, domain.ErrBadTransition)

	require.NoError(t, uc.ChangeState(ctx, 42, domain.StateIdle))
}

func TestClearGoalGate(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	uc := NewUserUseCase(repo, testPoints(t))
	ctx := context.Background()
	_, _, err := uc.Register(ctx, 42, "", "")
	require.NoError(t, err)

	require.NoError(t, uc.ChangeState(ctx, 42, domain.StateAwaitingGoals))
	require.NoError(t, uc.ClearGoalGate(ctx, 42))

	user, err := repo.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, user.State)

	// a user already working keeps their state
	require.NoError(t, uc.ChangeState(ctx, 42, domain.StateActive))
	require.NoError(t, uc.ClearGoalGate(ctx, 42))
	user, err = repo.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, user.State)
}

func TestDeleteCascades(t *testing.T) {
	db := newTestDB(t)
	users := repository.NewUserRepository(db)
	goals := goalrepo.NewGoalRepository(db)
	sessions := trackerrepo.NewSessionRepository(db)
	uc := NewUserUseCase(users, testPoints(t), goals, sessions)
	ctx := context.Background()

	_, _, err := uc.Register(ctx, 42, "", "")
	require.NoError(t, err)
	require.NoError(t, goals.Create(ctx, &goaldomain.Goal{UserTID: 42, Description: "читать"}))
	require.NoError(t, sessions.Create(ctx, trackerdomain.NewSession(42, nil, timex.Now())))

	require.NoError(t, uc.Delete(ctx, 42))

	_, err = users.GetByTID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	left, err := goals.ListByUser(ctx, 42, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, left)

	active, err := sessions.GetActive(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, active)
}
