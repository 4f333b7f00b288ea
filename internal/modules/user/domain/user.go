package domain

import (
	"errors"
	"time"
)

// State is the user's conversational state. Transitions are checked
// explicitly instead of comparing raw strings.
type State string

const (
	// StateIdle - no open session, goals may be managed freely
	StateIdle State = "idle"
	// StateActive - a work session is open, other interaction is gated
	StateActive State = "active"
	// StateAwaitingGoals - the day rolled over, new goals must be entered
	StateAwaitingGoals State = "awaiting_goals"
)

// legalTransitions lists the allowed state changes.
var legalTransitions = map[State][]State{
	StateIdle:          {StateActive, StateAwaitingGoals},
	StateActive:        {StateIdle, StateAwaitingGoals},
	StateAwaitingGoals: {StateIdle},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	if s == next {
		return true
	}
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateActive, StateAwaitingGoals:
		return true
	}
	return false
}

const (
	// DefaultPoints is granted on registration
	DefaultPoints = 50
	// DefaultLevel is the starting level
	DefaultLevel = 1
)

var (
	// ErrUserNotFound is returned when no user matches the external identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrIdentityTaken is returned on a unique external-identity collision.
	ErrIdentityTaken = errors.New("external identity already registered")
	// ErrBadTransition is returned for an illegal conversational-state change.
	ErrBadTransition = errors.New("illegal state transition")
)

// User carries identity plus accounting state. CountTime is the cumulative
// active duration in whole seconds; it never goes below zero. Points may go
// negative from penalties.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	TID       int64     `json:"tid" gorm:"column:tid;uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"column:name;type:varchar(255)"`
	Username  string    `json:"username" gorm:"column:username;type:varchar(255)"`
	Points    int       `json:"points" gorm:"column:points;default:50"`
	Level     int       `json:"level" gorm:"column:level;default:1"`
	Score     int       `json:"score" gorm:"column:score;default:0"`
	State     State     `json:"state" gorm:"column:state;type:varchar(32);default:idle"`
	CountTime int64     `json:"count_time" gorm:"column:count_time;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// TotalActive returns the cumulative active time as a duration.
func (u *User) TotalActive() time.Duration {
	return time.Duration(u.CountTime) * time.Second
}

// Profile is the user-facing account summary.
type Profile struct {
	TID         int64
	Name        string
	Level       int
	Points      int
	ToNextLevel int  // points remaining to the next threshold
	MaxLevel    bool // true when the top of the table is reached
	TotalActive time.Duration
}
