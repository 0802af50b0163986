// Package sched decides which tasks are due. It holds no state and does no
// I/O; the dispatcher calls Due on every tick and launches the returned IDs.
package sched

import (
	"time"

	"github.com/google/uuid"

	"taskwithme/internal/task"
)

// Due returns the IDs of tasks that should run now: active, scheduled at or
// before now, and not already running. Order follows the input slice.
func Due(now time.Time, tasks []task.Task, running map[uuid.UUID]struct{}) []uuid.UUID {
	var due []uuid.UUID
	for i := range tasks {
		t := &tasks[i]
		if !t.Active || t.NextRun == nil {
			continue
		}
		if t.NextRun.After(now) {
			continue
		}
		if _, busy := running[t.ID]; busy {
			continue
		}
		due = append(due, t.ID)
	}
	return due
}
