package task

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation failures for the create intent. The messages are user-facing
// (they end up verbatim in a warning notification).
var (
	ErrEmptyTitle   = errors.New("task title cannot be empty")
	ErrEmptyCommand = errors.New("command cannot be empty")
	ErrBadInterval  = errors.New("invalid interval")
)

// ValidateDefinition checks the raw create-intent fields and returns the
// parsed interval in seconds. The interval arrives as a string because the
// front-end passes user input through unparsed.
func ValidateDefinition(title, command, interval string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, ErrEmptyTitle
	}
	if strings.TrimSpace(command) == "" {
		return 0, ErrEmptyCommand
	}
	n, err := strconv.ParseInt(strings.TrimSpace(interval), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrBadInterval
	}
	return n, nil
}

// New builds a freshly created task: inactive, unscheduled, zero counts.
func New(title, command string, intervalSeconds int64, now time.Time) Task {
	return Task{
		ID:              uuid.New(),
		Title:           title,
		Command:         command,
		IntervalSeconds: intervalSeconds,
		Active:          false,
		CreatedAt:       now,
	}
}

func (t *Task) Interval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Toggle flips the active flag. Activation schedules the next run at
// now+interval; deactivation clears it. Returns the new active state.
func (t *Task) Toggle(now time.Time) bool {
	t.Active = !t.Active
	if t.Active {
		next := now.Add(t.Interval())
		t.NextRun = &next
	} else {
		t.NextRun = nil
	}
	return t.Active
}

// ApplyResult records a completed execution on the task and, when the task
// is still active, schedules the next run at completion time plus interval.
// Intervals never "catch up": a late run pushes the schedule forward from
// the completion, not from the old NextRun.
func (t *Task) ApplyResult(now time.Time, res ExecutionResult) {
	run := now
	t.LastRun = &run
	t.LastOutput = res.Output
	if res.Success {
		t.SuccessCount++
	} else {
		t.FailureCount++
	}
	if t.Active {
		next := now.Add(t.Interval())
		t.NextRun = &next
	}
}

// SuccessRate returns the percentage of successful runs, 0 when the task has
// never run.
func (t *Task) SuccessRate() float64 {
	total := t.SuccessCount + t.FailureCount
	if total == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(total) * 100
}

// Matches implements the read-only search/filter the front-end requests.
// The query matches case-insensitively against title and command.
func (t *Task) Matches(query string, f Filter) bool {
	switch f {
	case FilterActive:
		if !t.Active {
			return false
		}
	case FilterInactive:
		if t.Active {
			return false
		}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Command), q)
}

// FormatInterval renders an interval in seconds as a compact human unit.
func FormatInterval(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh", seconds/3600)
	default:
		return fmt.Sprintf("%dd", seconds/86400)
	}
}

// Normalize applies the documented lower bounds to user-supplied settings.
func (s *Settings) Normalize() {
	if s.RefreshInterval < 1 {
		s.RefreshInterval = 1
	}
	if s.MaxLogs < 10 {
		s.MaxLogs = 10
	}
	if s.Theme != ThemeLight && s.Theme != ThemeDark {
		s.Theme = ThemeDark
	}
}

func (s Settings) RefreshPeriod() time.Duration {
	return time.Duration(s.RefreshInterval) * time.Second
}

// FindByID returns the index of the task with the given id, or -1.
func FindByID(tasks []Task, id uuid.UUID) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
