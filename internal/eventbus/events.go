package eventbus

import (
	"github.com/google/uuid"

	"taskwithme/internal/task"
)

// Event types published by the dispatcher. Subscribers (the audit recorder,
// the API's notification feed) filter on these.
const (
	TypeTaskCreated   = "task.created"
	TypeTaskToggled   = "task.toggled"
	TypeTaskDeleted   = "task.deleted"
	TypeTaskCompleted = "task.completed"
	TypeSettingsSaved = "settings.saved"
	TypeNotification  = "notify"
)

// TaskCompleted is the Data payload for TypeTaskCompleted.
type TaskCompleted struct {
	TaskID uuid.UUID            `json:"task_id"`
	Title  string               `json:"title"`
	Result task.ExecutionResult `json:"result"`
}

// TaskChanged is the Data payload for created/toggled/deleted events.
type TaskChanged struct {
	TaskID uuid.UUID `json:"task_id"`
	Title  string    `json:"title"`
	Active bool      `json:"active"`
}
