package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dLukachev/maxbot/internal/config"
	goaldomain "github.com/dLukachev/maxbot/internal/modules/goal/domain"
	goalrepo "github.com/dLukachev/maxbot/internal/modules/goal/repository"
	goaluc "github.com/dLukachev/maxbot/internal/modules/goal/usecase"
	"github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	"github.com/dLukachev/maxbot/internal/modules/tracker/repository"
	userdomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	userrepo "github.com/dLukachev/maxbot/internal/modules/user/repository"
	useruc "github.com/dLukachev/maxbot/internal/modules/user/usecase"
	"github.com/dLukachev/maxbot/pkg/timex"
)

type fakeNotifier struct {
	sent    map[int64][]string
	failFor int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string)}
}

func (f *fakeNotifier) Send(_ context.Context, tid int64, text string) error {
	if f.failFor != 0 && tid == f.failFor {
		return fmt.Errorf("delivery failed for %d", tid)
	}
	f.sent[tid] = append(f.sent[tid], text)
	return nil
}

type stateRecorder struct {
	states map[int64]userdomain.State
}

func (s *stateRecorder) ChangeState(_ context.Context, tid int64, next userdomain.State) error {
	if s.states == nil {
		s.states = make(map[int64]userdomain.State)
	}
	s.states[tid] = next
	return nil
}

type fixture struct {
	uc       *TrackerUseCase
	sessions *repository.SessionRepository
	users    *userrepo.UserRepository
	notifier *fakeNotifier
	states   *stateRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &domain.Session{}))
	t.Cleanup(func() { sqlDB.Close() })

	users := userrepo.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	notifier := newFakeNotifier()
	states := &stateRecorder{}
	uc := NewTrackerUseCase(sessions, useruc.NewLedgerUseCase(users), states, notifier)
	return &fixture{uc: uc, sessions: sessions, users: users, notifier: notifier, states: states}
}

func (f *fixture) seedUser(t *testing.T, tid int64) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &userdomain.User{
		TID: tid, Points: userdomain.DefaultPoints, Level: 1, State: userdomain.StateIdle,
	}))
}

// at builds a time inside the service's fixed offset.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, timex.Location)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)
	ctx := context.Background()

	first, started, err := f.uc.Start(ctx, 42, nil)
	require.NoError(t, err)
	assert.True(t, started)

	second, started, err := f.uc.Start(ctx, 42, nil)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, userdomain.StateActive, f.states.states[42])
}

func TestStopCreditsLedger(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)
	ctx := context.Background()

	start := at(10, 12, 0)
	f.uc.now = func() time.Time { return start }
	_, _, err := f.uc.Start(ctx, 42, nil)
	require.NoError(t, err)

	f.uc.now = func() time.Time { return start.Add(90 * time.Minute) }
	elapsed, err := f.uc.Stop(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, elapsed)

	user, err := f.users.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), user.CountTime)
	assert.Equal(t, userdomain.StateIdle, f.states.states[42])

	active, err := f.sessions.GetActive(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStopWithoutActiveSession(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)

	_, err := f.uc.Stop(context.Background(), 42)
	assert.True(t, errors.Is(err, domain.ErrNoActiveSession))
}

func TestDayStraddleSplitsAcrossWindows(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)
	ctx := context.Background()

	// closed session 23:30 -> 00:30 across the day boundary
	s := domain.NewSession(42, nil, at(10, 23, 30))
	s.EndAt = at(11, 0, 30)
	s.Active = false
	require.NoError(t, f.sessions.Create(ctx, s))

	f.uc.now = func() time.Time { return at(11, 9, 0) }

	day1, err := f.uc.TotalActiveOnDate(ctx, 42, at(10, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, day1)

	day2, err := f.uc.TotalActiveOnDate(ctx, 42, at(11, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, day2)

	week, err := f.uc.TotalActiveForWeek(ctx, 42, at(11, 12, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, week)
}

func TestOpenSessionClippedAtNow(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)
	ctx := context.Background()

	start := at(10, 12, 0)
	f.uc.now = func() time.Time { return start }
	_, _, err := f.uc.Start(ctx, 42, nil)
	require.NoError(t, err)

	f.uc.now = func() time.Time { return start.Add(45 * time.Minute) }
	total, err := f.uc.TotalActiveOnDate(ctx, 42, start)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, total)
}

func TestForceCloseAllIsolatesNotifyFailure(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 1)
	f.seedUser(t, 2)
	f.notifier.failFor = 2
	ctx := context.Background()

	start := at(10, 20, 0)
	f.uc.now = func() time.Time { return start }
	_, _, err := f.uc.Start(ctx, 1, nil)
	require.NoError(t, err)
	_, _, err = f.uc.Start(ctx, 2, nil)
	require.NoError(t, err)

	f.uc.now = func() time.Time { return start.Add(time.Hour) }
	closed, failed, err := f.uc.ForceCloseAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	assert.Equal(t, 0, failed)

	// both credited even though one notification was lost
	for _, tid := range []int64{1, 2} {
		user, err := f.users.GetByTID(ctx, tid)
		require.NoError(t, err)
		assert.Equal(t, int64(3600), user.CountTime, "tid %d", tid)
	}
	require.Len(t, f.notifier.sent[1], 1)
	assert.Contains(t, f.notifier.sent[1][0], "01:00:00")
	assert.Empty(t, f.notifier.sent[2])
}

func TestGoalEntryReleasesNewDayGate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &goaldomain.Goal{}, &domain.Session{}))
	t.Cleanup(func() { sqlDB.Close() })

	users := userrepo.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	levels, err := config.ParseLevels("100:2")
	require.NoError(t, err)
	userUC := useruc.NewUserUseCase(users, config.PointsConfig{Levels: levels})
	trackerUC := NewTrackerUseCase(sessions, useruc.NewLedgerUseCase(users), userUC, newFakeNotifier())
	goalUC := goaluc.NewGoalUseCase(goalrepo.NewGoalRepository(db), nil, userUC)
	ctx := context.Background()

	_, _, err = userUC.Register(ctx, 42, "", "")
	require.NoError(t, err)
	// the nightly close-out parks everyone here
	require.NoError(t, userUC.ChangeState(ctx, 42, userdomain.StateAwaitingGoals))

	_, err = goalUC.AddFromText(ctx, 42, "читать книгу")
	require.NoError(t, err)

	user, err := users.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, userdomain.StateIdle, user.State)

	_, started, err := trackerUC.Start(ctx, 42, nil)
	require.NoError(t, err)
	assert.True(t, started)

	user, err = users.GetByTID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, userdomain.StateActive, user.State)
}

func TestAdjustGoalTime(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, 42)
	ctx := context.Background()
	goalID := int64(5)

	user, err := f.uc.AdjustGoalTime(ctx, 42, &goalID, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), user.CountTime)

	// the correction is recorded as a closed retroactive session
	total, err := f.uc.TotalActiveForGoal(ctx, 42, goalID)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, total)

	// negative corrections debit the ledger and leave a marker row
	user, err = f.uc.AdjustGoalTime(ctx, 42, &goalID, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.CountTime)

	sessions, err := f.sessions.ListByGoal(ctx, 42, goalID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.False(t, s.Active)
	}
}

func TestAdjustUnknownUser(t *testing.T) {
	f := newFixture(t)

	user, err := f.uc.AdjustGoalTime(context.Background(), 7, nil, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, user)
}
