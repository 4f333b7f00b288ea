package domain

import (
	"errors"
	"time"
)

// ErrGoalNotFound is returned when no goal matches the given ID.
var ErrGoalNotFound = errors.New("goal not found")

// Goal is a single task for a calendar day. CreatedAt decides which day
// the goal belongs to for "today" queries.
type Goal struct {
	ID          int64     `json:"id" gorm:"primaryKey;column:id;autoIncrement"`
	UserTID     int64     `json:"user_tid" gorm:"column:user_tid;index;not null"`
	Description string    `json:"description" gorm:"column:description;type:varchar(1500);not null"`
	IsDone      bool      `json:"is_done" gorm:"column:is_done;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the table name
func (Goal) TableName() string {
	return "goals"
}
