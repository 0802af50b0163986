package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"taskwithme/internal/dispatch"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

type createTaskRequest struct {
	Title   string `json:"title"`
	Command string `json:"command"`
	// Interval accepts both a JSON string and a number; validation happens
	// in the core.
	Interval json.Number `json:"interval"`
}

type taskResponse struct {
	task.Task
	IntervalDisplay string  `json:"interval_display"`
	SuccessRate     float64 `json:"success_rate"`
	Running         bool    `json:"running"`
}

func taskToResponse(t task.Task, running map[uuid.UUID]struct{}) taskResponse {
	_, busy := running[t.ID]
	return taskResponse{
		Task:            t,
		IntervalDisplay: task.FormatInterval(t.IntervalSeconds),
		SuccessRate:     t.SuccessRate(),
		Running:         busy,
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}

	query := r.URL.Query().Get("q")
	filter := task.ParseFilter(r.URL.Query().Get("filter"))
	running := runningSet(snap.Running)

	out := make([]taskResponse, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if !t.Matches(query, filter) {
			continue
		}
		out = append(out, taskToResponse(t, running))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	created, err := s.core.CreateTask(r.Context(), req.Title, req.Command, req.Interval.String())
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskToResponse(created, nil))
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	toggled, err := s.core.ToggleTask(r.Context(), id)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(toggled, nil))
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.core.ExecuteTask(r.Context(), id); err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.core.DeleteTask(r.Context(), id); err != nil {
		s.writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, task.Templates())
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}

	logs := snap.Logs
	if raw := r.URL.Query().Get("task_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id", "task_id is not a valid UUID")
			return
		}
		filtered := make([]task.ExecutionLog, 0, len(logs))
		for _, l := range logs {
			if l.TaskID == id {
				filtered = append(filtered, l)
			}
		}
		logs = filtered
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var cfg task.Settings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	saved, err := s.core.SaveSettings(r.Context(), cfg)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Notifications)
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "notificationID")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "notification id is not a valid UUID")
		return
	}
	if err := s.core.DismissNotification(r.Context(), id); err != nil {
		s.writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.core.ClearNotifications(r.Context()); err != nil {
		s.writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overviewResponse struct {
	TotalTasks  int     `json:"total_tasks"`
	ActiveTasks int     `json:"active_tasks"`
	Running     int     `json:"running"`
	TotalRuns   int     `json:"total_runs"`
	SuccessRate float64 `json:"success_rate"`
	GeneratedAt string  `json:"generated_at"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	snap, err := s.core.Snapshot(r.Context())
	if err != nil {
		s.internalError(w, "snapshot", err)
		return
	}

	out := overviewResponse{
		TotalTasks:  len(snap.Tasks),
		Running:     len(snap.Running),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	var success, runs int
	for _, t := range snap.Tasks {
		if t.Active {
			out.ActiveTasks++
		}
		success += t.SuccessCount
		runs += t.SuccessCount + t.FailureCount
	}
	out.TotalRuns = runs
	if runs > 0 {
		out.SuccessRate = float64(success) / float64(runs) * 100
	}
	writeJSON(w, http.StatusOK, out)
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "task id is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func runningSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	m := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// writeCoreError maps dispatcher errors onto HTTP statuses.
func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "already_running", err.Error())
	case errors.Is(err, task.ErrEmptyTitle),
		errors.Is(err, task.ErrEmptyCommand),
		errors.Is(err, task.ErrBadInterval):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		s.internalError(w, "intent", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("request failed", logx.String("op", op), logx.Err(err))
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
