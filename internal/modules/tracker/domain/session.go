package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrNoActiveSession is returned when a stop is requested without an open
// session.
var ErrNoActiveSession = errors.New("no active session")

// Session is one timed work interval, optionally tied to a goal. While
// Active is true EndAt is a placeholder equal to StartAt; once closed
// EndAt >= StartAt and the row is never edited again (manual corrections
// create new retroactive sessions instead).
type Session struct {
	ID        int64     `json:"id" gorm:"primaryKey;column:id"`
	UserTID   int64     `json:"user_tid" gorm:"column:user_tid;index;not null"`
	GoalID    *int64    `json:"goal_id,omitempty" gorm:"column:goal_id;index"`
	StartAt   time.Time `json:"start_at" gorm:"column:start_at;not null"`
	EndAt     time.Time `json:"end_at" gorm:"column:end_at;not null"`
	Active    bool      `json:"active" gorm:"column:active;index;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the table name
func (Session) TableName() string {
	return "sessions"
}

var (
	node *snowflake.Node
	once sync.Once
)

func initSnowflake() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

func nextID() int64 {
	once.Do(initSnowflake)
	return node.Generate().Int64()
}

// NewSession opens a work interval starting now.
func NewSession(tid int64, goalID *int64, now time.Time) *Session {
	return &Session{
		ID:      nextID(),
		UserTID: tid,
		GoalID:  goalID,
		StartAt: now,
		EndAt:   now,
		Active:  true,
	}
}

// NewRetroactive records an already-finished interval of the given length
// ending at now. Used for manual time corrections; length zero produces a
// marker row.
func NewRetroactive(tid int64, goalID *int64, now time.Time, length time.Duration) *Session {
	if length < 0 {
		length = 0
	}
	return &Session{
		ID:      nextID(),
		UserTID: tid,
		GoalID:  goalID,
		StartAt: now.Add(-length),
		EndAt:   now,
		Active:  false,
	}
}

// EndOrNow returns the effective end of the interval: open sessions extend
// to now.
func (s *Session) EndOrNow(now time.Time) time.Time {
	if s.Active && now.After(s.EndAt) {
		return now
	}
	return s.EndAt
}

// Elapsed returns the interval length, using now as the end while open.
func (s *Session) Elapsed(now time.Time) time.Duration {
	d := s.EndOrNow(now).Sub(s.StartAt)
	if d < 0 {
		return 0
	}
	return d
}
