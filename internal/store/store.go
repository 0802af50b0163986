// Package store persists tasks, execution logs, and settings as JSON
// documents under the user data directory. Every write replaces the whole
// document through a temp-file rename so a crash never leaves a torn file.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"taskwithme/internal/apperr"
	"taskwithme/internal/task"
)

const (
	tasksFile  = "tasks.json"
	logsFile   = "logs.json"
	configFile = "config.json"
)

// Store owns a data directory. It is not safe for concurrent use; the
// dispatcher funnels all persistence through a single worker.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.IO(err)
	}
	return &Store{dir: dir}, nil
}

// Dir reports the data directory the store writes under.
func (s *Store) Dir() string { return s.dir }

// LoadTasks reads the task document. A missing file yields an empty slice.
func (s *Store) LoadTasks() ([]task.Task, error) {
	var tasks []task.Task
	if _, err := s.readDoc(tasksFile, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SaveTask inserts or replaces a task by ID and rewrites the document.
func (s *Store) SaveTask(t task.Task) error {
	tasks, err := s.LoadTasks()
	if err != nil {
		return err
	}
	if i := task.FindByID(tasks, t.ID); i >= 0 {
		tasks[i] = t
	} else {
		tasks = append(tasks, t)
	}
	return s.writeDoc(tasksFile, tasks)
}

// DeleteTask removes a task by ID. Deleting an absent ID is not an error.
func (s *Store) DeleteTask(id uuid.UUID) error {
	tasks, err := s.LoadTasks()
	if err != nil {
		return err
	}
	kept := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return s.writeDoc(tasksFile, kept)
}

// LoadLogs reads the execution-log document. A missing file yields an empty
// slice.
func (s *Store) LoadLogs() ([]task.ExecutionLog, error) {
	var logs []task.ExecutionLog
	if _, err := s.readDoc(logsFile, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// SaveLogs replaces the execution-log document wholesale. The caller is
// responsible for trimming to the configured cap first.
func (s *Store) SaveLogs(logs []task.ExecutionLog) error {
	return s.writeDoc(logsFile, logs)
}

// LoadConfig reads the settings document. When the file does not exist yet
// the defaults are written out and returned, so a fresh install starts with
// a config on disk.
func (s *Store) LoadConfig() (task.Settings, error) {
	var cfg task.Settings
	ok, err := s.readDoc(configFile, &cfg)
	if err != nil {
		return task.Settings{}, err
	}
	if !ok {
		cfg = task.DefaultSettings()
		if err := s.writeDoc(configFile, cfg); err != nil {
			return task.Settings{}, err
		}
		return cfg, nil
	}
	cfg.Normalize()
	return cfg, nil
}

// SaveConfig replaces the settings document.
func (s *Store) SaveConfig(cfg task.Settings) error {
	return s.writeDoc(configFile, cfg)
}

// readDoc unmarshals one document into out. It reports whether the file
// existed; malformed JSON is a serialization error, never an empty result.
func (s *Store) readDoc(name string, out any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.IO(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, apperr.Serialization(err)
	}
	return true, nil
}

// writeDoc marshals v and swaps it into place atomically.
func (s *Store) writeDoc(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Serialization(err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperr.IO(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperr.IO(err)
	}
	return nil
}
