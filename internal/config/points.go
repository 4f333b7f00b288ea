package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LevelThreshold maps a minimum points value to a level label. The table
// is kept sorted ascending by MinPoints.
type LevelThreshold struct {
	MinPoints int
	Level     int
}

// PointsConfig holds the tunables of the daily points formula and the
// level-threshold table.
type PointsConfig struct {
	NoGoalPenalty   int           // subtracted when a day has no goals
	BonusThreshold  time.Duration // active time needed for the bonus
	BonusPoints     int           // awarded above the threshold
	CompletionBoost float64       // multiplier in the completion formula
	Levels          []LevelThreshold
}

// ReconcileConfig holds midnight job settings.
type ReconcileConfig struct {
	Hour        int // hour of day in UTC+3
	PageSize    int
	Concurrency int
}

func loadPointsConfig() PointsConfig {
	levels, err := ParseLevels(getEnv("LEVEL_THRESHOLDS", "100:2,250:3,500:4,1000:5"))
	if err != nil {
		panic(fmt.Sprintf("invalid LEVEL_THRESHOLDS: %v", err))
	}
	return PointsConfig{
		NoGoalPenalty:   getEnvInt("POINTS_NO_GOAL_PENALTY", 10),
		BonusThreshold:  getEnvDuration("POINTS_BONUS_THRESHOLD", 3*time.Hour),
		BonusPoints:     getEnvInt("POINTS_BONUS", 3),
		CompletionBoost: getEnvFloat("POINTS_COMPLETION_BOOST", 0.6314),
		Levels:          levels,
	}
}

func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Hour:        getEnvInt("RECONCILE_HOUR", 0),
		PageSize:    getEnvInt("RECONCILE_PAGE_SIZE", 100),
		Concurrency: getEnvInt("RECONCILE_CONCURRENCY", 8),
	}
}

// ParseLevels parses a "minPoints:level" comma-separated table, e.g.
// "100:2,250:3". The result is sorted ascending by threshold. Duplicate
// thresholds and non-positive levels are rejected.
func ParseLevels(s string) ([]LevelThreshold, error) {
	var out []LevelThreshold
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad entry %q", part)
		}
		minPoints, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, fmt.Errorf("bad threshold %q: %w", kv[0], err)
		}
		level, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("bad level %q: %w", kv[1], err)
		}
		if level < 1 {
			return nil, fmt.Errorf("level must be >= 1 in %q", part)
		}
		if seen[minPoints] {
			return nil, fmt.Errorf("duplicate threshold %d", minPoints)
		}
		seen[minPoints] = true
		out = append(out, LevelThreshold{MinPoints: minPoints, Level: level})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty level table")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinPoints < out[j].MinPoints })
	return out, nil
}

// LevelFor returns the level label of the highest threshold not exceeding
// points, or 1 when no threshold is reached.
func (c PointsConfig) LevelFor(points int) int {
	level := 1
	for _, t := range c.Levels {
		if points >= t.MinPoints {
			level = t.Level
		} else {
			break
		}
	}
	return level
}

// NextThreshold returns the lowest threshold strictly above points, or
// false when the top of the table is reached.
func (c PointsConfig) NextThreshold(points int) (int, bool) {
	for _, t := range c.Levels {
		if points < t.MinPoints {
			return t.MinPoints, true
		}
	}
	return 0, false
}
