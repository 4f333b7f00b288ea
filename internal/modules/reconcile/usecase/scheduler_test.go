package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dLukachev/maxbot/pkg/timex"
)

func TestSchedulerNextRun(t *testing.T) {
	s := NewScheduler(nil, 0)

	// before midnight: fires at the upcoming boundary
	now := time.Date(2026, time.March, 10, 23, 30, 0, 0, timex.Location)
	next := s.nextRun(now)
	assert.Equal(t, time.Date(2026, time.March, 11, 0, 0, 0, 0, timex.Location), next)

	// exactly on the boundary: fires tomorrow, not immediately again
	now = time.Date(2026, time.March, 11, 0, 0, 0, 0, timex.Location)
	next = s.nextRun(now)
	assert.Equal(t, time.Date(2026, time.March, 12, 0, 0, 0, 0, timex.Location), next)
}

func TestSchedulerNextRunNonMidnightHour(t *testing.T) {
	s := NewScheduler(nil, 4)

	now := time.Date(2026, time.March, 10, 2, 0, 0, 0, timex.Location)
	assert.Equal(t, time.Date(2026, time.March, 10, 4, 0, 0, 0, timex.Location), s.nextRun(now))

	now = time.Date(2026, time.March, 10, 5, 0, 0, 0, timex.Location)
	assert.Equal(t, time.Date(2026, time.March, 11, 4, 0, 0, 0, timex.Location), s.nextRun(now))
}

func TestSchedulerNextRunConvertsToFixedOffset(t *testing.T) {
	s := NewScheduler(nil, 0)

	// 22:00 UTC is already 01:00 next day in the fixed offset
	now := time.Date(2026, time.March, 10, 22, 0, 0, 0, time.UTC)
	next := s.nextRun(now)
	assert.Equal(t, time.Date(2026, time.March, 12, 0, 0, 0, 0, timex.Location), next)
}

func TestSchedulerStopUnblocksStart(t *testing.T) {
	pager := newFakePager(0)
	uc := NewReconcileUseCase(pager, &fakeCloser{}, &fakeSettler{}, &recordingNotifier{}, testReconcileConfig())
	s := NewScheduler(uc, 0)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
