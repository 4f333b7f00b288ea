package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dLukachev/maxbot/internal/modules/user/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newUser(tid int64) *domain.User {
	return &domain.User{
		TID:    tid,
		Name:   "Лука",
		Points: domain.DefaultPoints,
		Level:  domain.DefaultLevel,
		State:  domain.StateIdle,
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser(42)))

	got, err := repo.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.TID)
	assert.Equal(t, domain.DefaultPoints, got.Points)
	assert.Equal(t, domain.DefaultLevel, got.Level)

	_, err = repo.GetByTID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCreateDuplicateTID(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser(42)))
	err := repo.Create(ctx, newUser(42))
	assert.ErrorIs(t, err, domain.ErrIdentityTaken)
}

func TestAddDurationClampsAtZero(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newUser(42)))

	user, err := repo.AddDuration(ctx, 42, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.CountTime)

	// subtracting more than the balance floors at zero
	user, err = repo.AddDuration(ctx, 42, -250)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.CountTime)

	_, err = repo.AddDuration(ctx, 7, 10)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAddPointsGoesNegative(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newUser(42)))

	user, err := repo.AddPoints(ctx, 42, -60)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPoints-60, user.Points)
}

func TestSetLevelAndState(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newUser(42)))

	require.NoError(t, repo.SetLevel(ctx, 42, 3))
	require.NoError(t, repo.SetState(ctx, 42, domain.StateActive))

	got, err := repo.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, domain.StateActive, got.State)

	assert.ErrorIs(t, repo.SetLevel(ctx, 7, 2), domain.ErrUserNotFound)
}

func TestListPaginates(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()
	for tid := int64(1); tid <= 5; tid++ {
		require.NoError(t, repo.Create(ctx, newUser(tid)))
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].TID)

	page, err = repo.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(5), page[0].TID)
}
