package task

import (
	"time"

	"github.com/google/uuid"
)

// Task is a user-defined recurring shell command with schedule state.
//
// JSON field names are the on-disk document format; LastOutput is transient
// and never persisted.
//
// Invariants (maintained by the dispatcher through the methods below):
//   - NextRun is set if and only if Active is true.
//   - SuccessCount and FailureCount only ever increase.
type Task struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Command         string     `json:"command"`
	IntervalSeconds int64      `json:"interval_seconds"`
	Active          bool       `json:"is_active"`
	LastRun         *time.Time `json:"last_run"`
	NextRun         *time.Time `json:"next_run"`
	CreatedAt       time.Time  `json:"created_at"`
	SuccessCount    int        `json:"success_count"`
	FailureCount    int        `json:"failure_count"`

	LastOutput string `json:"-"`
}

// ExecutionLog is an immutable record of one completed run.
// Output holds trimmed stdout on success, trimmed stderr on failure.
type ExecutionLog struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Output     string    `json:"output"`
	DurationMS uint64    `json:"duration_ms"`
}

// ExecutionResult is what the execution engine reports for a completed spawn.
// A non-zero exit status is Success=false here, not an error.
type ExecutionResult struct {
	Success    bool
	Output     string
	DurationMS uint64
}

// Theme is stored for the front-end; the core only persists it.
type Theme string

const (
	ThemeLight Theme = "Light"
	ThemeDark  Theme = "Dark"
)

// Settings is the user-level configuration document.
type Settings struct {
	RefreshInterval int64 `json:"refresh_interval"` // seconds between due-scans
	MaxLogs         int   `json:"max_logs"`
	Theme           Theme `json:"theme"`
	LogToFile       bool  `json:"log_to_file"`
}

// DefaultSettings are used when no config document exists yet.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval: 5,
		MaxLogs:         500,
		Theme:           ThemeDark,
		LogToFile:       true,
	}
}

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is an ephemeral UI-facing event. Not persisted.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Message   string            `json:"message"`
	Level     NotificationLevel `json:"level"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewNotification(level NotificationLevel, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.New(),
		Message:   message,
		Level:     level,
		Timestamp: now,
	}
}

// Filter is the read-only task list filter requested by the front-end.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterInactive Filter = "inactive"
)

// ParseFilter maps a query value to a Filter; unknown values mean FilterAll.
func ParseFilter(s string) Filter {
	switch Filter(s) {
	case FilterActive:
		return FilterActive
	case FilterInactive:
		return FilterInactive
	default:
		return FilterAll
	}
}
