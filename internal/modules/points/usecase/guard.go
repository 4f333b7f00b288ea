// Package usecase implements the daily points settlement and the
// goals-today guard that gates session commands on having goals set.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/dLukachev/maxbot/pkg/logger"
	"github.com/dLukachev/maxbot/pkg/timex"
)

// GuardTTL bounds how long a positive goals-today verdict may be served
// from cache. Entries are additionally capped at the end of the calendar
// day they were computed in.
const GuardTTL = 57600 * time.Second

// GoalCounter is the storage check behind the guard.
type GoalCounter interface {
	CountOnDay(ctx context.Context, tid int64, at time.Time) (int64, error)
}

// GoalGuard answers "has this user set goals today". Positive verdicts
// are cached (Redis when available, in-memory otherwise); negative ones
// are always re-checked so newly added goals unblock the user at once.
// Concurrent misses for the same user collapse into one storage query.
type GoalGuard struct {
	counter GoalCounter
	rdb     redis.UniversalClient
	ttl     time.Duration
	group   singleflight.Group

	mu  sync.Mutex
	mem map[int64]time.Time // tid -> cache entry expiry

	now func() time.Time
}

// NewGoalGuard creates the guard. rdb may be nil, leaving only the
// in-memory cache.
func NewGoalGuard(counter GoalCounter, rdb redis.UniversalClient) *GoalGuard {
	return &GoalGuard{
		counter: counter,
		rdb:     rdb,
		ttl:     GuardTTL,
		mem:     make(map[int64]time.Time),
		now:     timex.Now,
	}
}

func guardKey(tid int64) string {
	return fmt.Sprintf("goals_today:%d", tid)
}

// HasGoalsToday reports whether the user created at least one goal inside
// the current calendar day.
func (g *GoalGuard) HasGoalsToday(ctx context.Context, tid int64) (bool, error) {
	now := g.now()

	g.mu.Lock()
	expiry, ok := g.mem[tid]
	if ok && now.Before(expiry) {
		g.mu.Unlock()
		return true, nil
	}
	if ok {
		delete(g.mem, tid)
	}
	g.mu.Unlock()

	key := guardKey(tid)
	if g.rdb != nil {
		n, err := g.rdb.Exists(ctx, key).Result()
		if err != nil && err != redis.Nil {
			logger.Warn(ctx).Err(err).Int64("tid", tid).Msg("guard cache lookup failed, falling through to storage")
		} else if n > 0 {
			g.remember(tid, now)
			return true, nil
		}
	}

	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		count, err := g.counter.CountOnDay(ctx, tid, now)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check today's goals: %w", err)
	}

	has := v.(bool)
	if has {
		g.remember(tid, now)
		if g.rdb != nil {
			if err := g.rdb.Set(ctx, key, "1", g.cacheTTL(now)).Err(); err != nil {
				logger.Warn(ctx).Err(err).Int64("tid", tid).Msg("guard cache write failed")
			}
		}
	}
	return has, nil
}

// cacheTTL bounds an entry's lifetime by both the configured TTL and the
// end of the current calendar day. A verdict is only about today's goals,
// so it must never be served past midnight.
func (g *GoalGuard) cacheTTL(now time.Time) time.Duration {
	ttl := g.ttl
	if _, dayEnd := timex.DayWindow(now); dayEnd.Sub(now) < ttl {
		ttl = dayEnd.Sub(now)
	}
	return ttl
}

// Invalidate drops the cached verdict; called whenever the user's goal
// set changes.
func (g *GoalGuard) Invalidate(ctx context.Context, tid int64) {
	key := guardKey(tid)
	g.group.Forget(key)

	g.mu.Lock()
	delete(g.mem, tid)
	g.mu.Unlock()

	if g.rdb != nil {
		if err := g.rdb.Del(ctx, key).Err(); err != nil {
			logger.Warn(ctx).Err(err).Int64("tid", tid).Msg("guard cache invalidation failed")
		}
	}
}

func (g *GoalGuard) remember(tid int64, now time.Time) {
	g.mu.Lock()
	g.mem[tid] = now.Add(g.cacheTTL(now))
	g.mu.Unlock()
}
