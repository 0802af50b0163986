// Package audit records completed executions to a durable trail. Recording
// is driven by bus events and gated by the user's log_to_file setting.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Config configures the audit trail.
//
// Driver values:
//   - "file": append-only JSON Lines
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one completed execution.
// Keep it compact and schema-stable.
type Entry struct {
	At         time.Time `json:"at"`
	TaskID     uuid.UUID `json:"task_id"`
	Title      string    `json:"title"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	DurationMS uint64    `json:"duration_ms"`
}
