package task

import (
	"strings"
	"time"

	"github.com/example/collab-task-board/domain/user"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the board column a task sits in.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Active reports whether a task in status s counts toward its assignee's load.
func (s Status) Active() bool {
	return s == StatusTodo || s == StatusInProgress
}

// ActiveStatuses lists the statuses that count toward assignment load.
var ActiveStatuses = []Status{StatusTodo, StatusInProgress}

// Task is a card on the board.
//
// Version is the optimistic-concurrency fingerprint: every successful
// mutation increments it and refreshes UpdatedAt.
type Task struct {
	ID          string     `gorm:"primaryKey;type:text"`
	Title       string     `gorm:"uniqueIndex;not null;type:text"`
	Description string     `gorm:"not null;type:text"`
	Priority    Priority   `gorm:"not null;type:text"`
	Status      Status     `gorm:"not null;type:text;index"`
	AssignedTo  *string    `gorm:"type:text;index"`
	Assignee    *user.User `gorm:"foreignKey:AssignedTo;references:ID"`
	CreatedBy   string     `gorm:"not null;type:text;index"`
	Version     int64      `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for the Task entity.
func (Task) TableName() string {
	return "tasks"
}

// Patch is a partial update to a task. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

// Validate checks the fields present in the patch.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("title must not be empty")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return invalid("description must not be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority must be one of Low, Medium, High")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status must be one of Todo, In Progress, Done")
	}
	return nil
}

// Columns returns the column assignments for the fields present in the patch.
func (p Patch) Columns() map[string]any {
	cols := make(map[string]any, 4)
	if p.Title != nil {
		cols["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Priority != nil {
		cols["priority"] = *p.Priority
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	return cols
}

// Fingerprint identifies the revision of a task a caller last observed.
// Version takes precedence when both are set.
type Fingerprint struct {
	Version   *int64     `json:"version,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// IsZero reports whether the caller supplied no fingerprint at all.
func (f Fingerprint) IsZero() bool {
	return f.Version == nil && f.UpdatedAt == nil
}

// Stale reports whether t has moved on since the fingerprint was taken.
// UpdatedAt is compared at full precision.
func (f Fingerprint) Stale(t *Task) bool {
	switch {
	case f.Version != nil:
		return *f.Version != t.Version
	case f.UpdatedAt != nil:
		return !f.UpdatedAt.Equal(t.UpdatedAt)
	default:
		return false
	}
}
