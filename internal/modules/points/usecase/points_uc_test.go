package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dLukachev/maxbot/internal/config"
	goaldomain "github.com/dLukachev/maxbot/internal/modules/goal/domain"
	userdomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	userrepo "github.com/dLukachev/maxbot/internal/modules/user/repository"
)

type fakeGoalLister struct {
	goals []*goaldomain.Goal
}

func (f *fakeGoalLister) ListOnDay(_ context.Context, _ int64, _ time.Time) ([]*goaldomain.Goal, error) {
	return f.goals, nil
}

type fakeTimer struct {
	active time.Duration
}

func (f *fakeTimer) TotalActiveOnDate(_ context.Context, _ int64, _ time.Time) (time.Duration, error) {
	return f.active, nil
}

func goalSet(done, total int) []*goaldomain.Goal {
	goals := make([]*goaldomain.Goal, 0, total)
	for i := 0; i < total; i++ {
		goals = append(goals, &goaldomain.Goal{ID: int64(i + 1), UserTID: 42, IsDone: i < done})
	}
	return goals
}

func testConfig(t *testing.T) config.PointsConfig {
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

type pointsFixture struct {
	uc    *PointsUseCase
	users *userrepo.UserRepository
	goals *fakeGoalLister
	timer *fakeTimer
}

func newPointsFixture(t *testing.T) *pointsFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}))
	t.Cleanup(func() { sqlDB.Close() })

	users := userrepo.NewUserRepository(db)
	goals := &fakeGoalLister{}
	timer := &fakeTimer{}
	return &pointsFixture{
		uc:    NewPointsUseCase(goals, timer, users, testConfig(t)),
		users: users,
		goals: goals,
		timer: timer,
	}
}

func (f *pointsFixture) seedUser(t *testing.T, points, level int) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &userdomain.User{
		TID: 42, Points: points, Level: level, State: userdomain.StateIdle,
	}))
}

func TestComputeDailyNoGoals(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 50, 1)

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, -10, res.Delta)
	assert.Equal(t, 40, res.Points)
	assert.False(t, res.HadGoals)
	assert.False(t, res.LeveledUp)
}

func TestComputeDailyHalfDoneTruncatesToZero(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 50, 1)
	f.goals.goals = goalSet(1, 2)
	f.timer.active = 2 * time.Hour

	// floor(0.5 * 3 * 0.6314) = 0
	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delta)
	assert.Equal(t, 50, res.Points)
	assert.Equal(t, 1, res.Done)
	assert.Equal(t, 2, res.Total)
}

func TestComputeDailyActiveBonus(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 50, 1)
	f.goals.goals = goalSet(1, 2)
	f.timer.active = 4 * time.Hour

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Delta)
	assert.Equal(t, 53, res.Points)
}

func TestComputeDailyExactThresholdNoBonus(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 50, 1)
	f.goals.goals = goalSet(0, 1)
	f.timer.active = 3 * time.Hour // bonus requires strictly more

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Delta)
}

func TestComputeDailyAllDone(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 50, 1)
	f.goals.goals = goalSet(2, 2)
	f.timer.active = time.Hour

	// floor(1.0 * 3 * 0.6314) = 1
	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delta)
	assert.Equal(t, 51, res.Points)
}

func TestComputeDailyLevelUp(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 99, 1)
	f.goals.goals = goalSet(2, 2)
	f.timer.active = time.Hour

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)

	user, err := f.users.GetByTID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 2, user.Level)
}

func TestComputeDailyLevelNeverDecreases(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 10, 3)
	f.goals.goals = goalSet(0, 1)
	f.timer.active = 0

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Level)
	assert.False(t, res.LeveledUp)

	user, err := f.users.GetByTID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 3, user.Level)
}

func TestComputeDailyPenaltySkipsLevelCheck(t *testing.T) {
	f := newPointsFixture(t)
	f.seedUser(t, 105, 1) // above a threshold already, but no goals today

	res, err := f.uc.ComputeDaily(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 95, res.Points)
	assert.Equal(t, 1, res.Level)

	user, err := f.users.GetByTID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1, user.Level)
}
