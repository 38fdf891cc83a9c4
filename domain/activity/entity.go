package activity

import "time"

// Actions recorded for task mutations.
const (
	ActionCreated = "created task"
	ActionUpdated = "updated task"
	ActionDeleted = "deleted task"
)

// Placeholders rendered when a log entry outlives the user or task it names.
const (
	UnknownUser = "Someone"
	UnknownTask = "a task"
)

// SmartAssigned is the action recorded when a task is smart-assigned to name.
func SmartAssigned(name string) string {
	return "smart assigned to " + name
}

// LogEntry is an append-only record of a task mutation.
type LogEntry struct {
	ID        string    `gorm:"primaryKey;type:text"`
	UserID    string    `gorm:"not null;type:text;index"`
	TaskID    string    `gorm:"not null;type:text;index"`
	Action    string    `gorm:"not null;type:text"`
	Timestamp time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the LogEntry entity.
func (LogEntry) TableName() string {
	return "log_entries"
}

// UserRef is a resolved reference to the user who acted.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskRef is a resolved reference to the task acted on.
type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FeedItem is a log entry with its references resolved for display.
type FeedItem struct {
	ID        string    `json:"id"`
	User      UserRef   `json:"userId"`
	Task      TaskRef   `json:"taskId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
