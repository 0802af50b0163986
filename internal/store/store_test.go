package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskwithme/internal/apperr"
	"taskwithme/internal/task"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestLoadTasksMissingFile(t *testing.T) {
	s := openTemp(t)
	tasks, err := s.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestLoadTasksCorruptFile(t *testing.T) {
	s := openTemp(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), tasksFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.LoadTasks()
	if err == nil {
		t.Fatal("expected error for corrupt document")
	}
	if k, ok := apperr.KindOf(err); !ok || k != apperr.KindSerialization {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestSaveTaskInsertAndReplace(t *testing.T) {
	s := openTemp(t)
	now := time.Now().UTC()

	a := task.New("backup", "tar czf /tmp/b.tgz ~/docs", 3600, now)
	b := task.New("ping", "ping -c1 example.org", 60, now)
	for _, tk := range []task.Task{a, b} {
		if err := s.SaveTask(tk); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
	}

	a.Title = "nightly backup"
	if err := s.SaveTask(a); err != nil {
		t.Fatalf("SaveTask replace: %v", err)
	}

	tasks, err := s.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	i := task.FindByID(tasks, a.ID)
	if i < 0 || tasks[i].Title != "nightly backup" {
		t.Fatalf("replace did not stick: %+v", tasks)
	}
}

func TestDeleteTask(t *testing.T) {
	s := openTemp(t)
	now := time.Now().UTC()
	a := task.New("one", "true", 60, now)
	b := task.New("two", "true", 60, now)
	if err := s.SaveTask(a); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTask(b); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := s.DeleteTask(uuid.New()); err != nil {
		t.Fatalf("DeleteTask absent id: %v", err)
	}

	tasks, err := s.LoadTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Fatalf("expected only %s left, got %+v", b.ID, tasks)
	}
}

func TestLoadConfigWritesDefaults(t *testing.T) {
	s := openTemp(t)
	cfg, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != task.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), configFile)); err != nil {
		t.Fatalf("defaults were not persisted: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := openTemp(t)
	want := task.Settings{RefreshInterval: 10, MaxLogs: 50, Theme: task.ThemeLight, LogToFile: false}
	if err := s.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got, err := s.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSaveLogsRoundTrip(t *testing.T) {
	s := openTemp(t)
	logs := []task.ExecutionLog{
		{ID: uuid.New(), TaskID: uuid.New(), Timestamp: time.Now().UTC(), Success: true, Output: "ok", DurationMS: 12},
	}
	if err := s.SaveLogs(logs); err != nil {
		t.Fatalf("SaveLogs: %v", err)
	}
	got, err := s.LoadLogs()
	if err != nil {
		t.Fatalf("LoadLogs: %v", err)
	}
	if len(got) != 1 || got[0].ID != logs[0].ID || got[0].DurationMS != 12 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveTaskPropagatesCorruption(t *testing.T) {
	s := openTemp(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), tasksFile), []byte("[1,2"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.SaveTask(task.New("x", "true", 60, time.Now()))
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind() != apperr.KindSerialization {
		t.Fatalf("expected serialization error, got %v", err)
	}
}
