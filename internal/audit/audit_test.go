package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskwithme/internal/eventbus"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: expected disabled, got %v %v", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	id := uuid.New()
	for i := 0; i < 3; i++ {
		e := Entry{At: time.Now().UTC(), TaskID: id, Title: "backup", Success: i%2 == 0, DurationMS: uint64(i)}
		if err := st.Append(context.Background(), e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var n int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		if e.TaskID != id {
			t.Fatalf("line %d: task id %s", n, e.TaskID)
		}
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 lines, got %d", n)
	}
}

func TestSQLiteAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	e := Entry{TaskID: uuid.New(), Title: "ping", Success: true, Output: "pong", DurationMS: 42}
	if err := st.Append(context.Background(), e); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestRecorderGatedBySetting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	bus := eventbus.New()
	r := NewRecorder(st, bus, logx.Nop(), false)
	r.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	}()

	completed := eventbus.Event{
		Type: eventbus.TypeTaskCompleted,
		Data: eventbus.TaskCompleted{TaskID: uuid.New(), Title: "t", Result: task.ExecutionResult{Success: true}},
	}

	// Disabled: nothing recorded.
	bus.Publish(completed)

	// Enable via a settings save, then record.
	cfg := task.DefaultSettings()
	cfg.LogToFile = true
	bus.Publish(eventbus.Event{Type: eventbus.TypeSettingsSaved, Data: cfg})
	bus.Publish(completed)

	deadline := time.Now().Add(3 * time.Second)
	for {
		data, _ := os.ReadFile(path)
		lines := 0
		for _, b := range data {
			if b == '\n' {
				lines++
			}
		}
		if lines == 1 {
			break
		}
		if lines > 1 {
			t.Fatalf("recorded while disabled: %s", data)
		}
		if time.Now().After(deadline) {
			t.Fatalf("entry never recorded; file: %q", data)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
