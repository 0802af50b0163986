// Package dispatch hosts the single-writer event loop that owns all mutable
// application state: tasks, execution logs, user settings, the running set,
// and the notification queue. Every mutation happens on one goroutine;
// blocking work (shell execution, document writes) runs elsewhere and its
// result re-enters the loop as an event.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"taskwithme/internal/eventbus"
	"taskwithme/internal/runtime/supervisor"
	"taskwithme/internal/store"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

var (
	// ErrNotFound reports an intent that names an unknown task or
	// notification ID.
	ErrNotFound = errors.New("task not found")
	// ErrAlreadyRunning reports an execute intent for a task whose previous
	// run has not finished.
	ErrAlreadyRunning = errors.New("task is already running")
	// ErrStopped reports an intent sent after the loop shut down.
	ErrStopped = errors.New("dispatcher stopped")
)

// Executor runs a task's command to completion.
type Executor interface {
	Execute(t task.Task) (task.ExecutionResult, error)
}

// Options configures the dispatcher.
type Options struct {
	Store    *store.Store
	Executor Executor
	Bus      eventbus.Bus
	Log      logx.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is the read model handed to the front-end boundary.
type Snapshot struct {
	Tasks         []task.Task         `json:"tasks"`
	Logs          []task.ExecutionLog `json:"logs"`
	Settings      task.Settings       `json:"settings"`
	Running       []uuid.UUID         `json:"running"`
	Notifications []task.Notification `json:"notifications"`
}

// Service is the dispatcher. Create with New, then Start. All exported
// intent methods are safe for concurrent use; they funnel into the loop.
type Service struct {
	st   *store.Store
	exec Executor
	bus  eventbus.Bus
	log  logx.Logger
	now  func() time.Time

	intents  chan command
	events   chan event
	persistQ chan persistOp

	sup  *supervisor.Supervisor
	done chan struct{}
}

// command runs on the loop goroutine with exclusive access to state.
type command func(lp *loop)

func New(opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		st:       opts.Store,
		exec:     opts.Executor,
		bus:      opts.Bus,
		log:      opts.Log,
		now:      now,
		intents:  make(chan command, 16),
		events:   make(chan event, 64),
		persistQ: make(chan persistOp, 64),
		done:     make(chan struct{}),
	}
}

// Start loads persisted state and launches the loop and the persist worker.
// Load failures are not fatal: the loop starts with an empty collection and
// an error notification, matching the persistence contract.
func (s *Service) Start(ctx context.Context) {
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.sup.Go0("dispatch.loop", s.run)
	s.sup.Go0("dispatch.persist", s.persistWorker)
}

// Stop cancels the loop and waits for in-flight executions and writes.
func (s *Service) Stop(ctx context.Context) error {
	if s.sup == nil {
		return nil
	}
	return s.sup.Stop(ctx)
}

// send hands cmd to the loop, honoring ctx and shutdown.
func (s *Service) send(ctx context.Context, cmd command) error {
	select {
	case s.intents <- cmd:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await blocks for the loop's reply. The loop may exit with the intent
// still queued, so shutdown unblocks the caller too.
func await[T any](s *Service, ctx context.Context, reply <-chan T) (T, error) {
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		var zero T
		return zero, ErrStopped
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// CreateTask validates the definition and adds an inactive task.
func (s *Service) CreateTask(ctx context.Context, title, command, interval string) (task.Task, error) {
	reply := make(chan taskReply, 1)
	err := s.send(ctx, func(lp *loop) {
		t, err := lp.createTask(title, command, interval)
		reply <- taskReply{t, err}
	})
	if err != nil {
		return task.Task{}, err
	}
	r, err := await(s, ctx, reply)
	if err != nil {
		return task.Task{}, err
	}
	return r.t, r.err
}

// ToggleTask flips a task between active and paused.
func (s *Service) ToggleTask(ctx context.Context, id uuid.UUID) (task.Task, error) {
	reply := make(chan taskReply, 1)
	err := s.send(ctx, func(lp *loop) {
		t, err := lp.toggleTask(id)
		reply <- taskReply{t, err}
	})
	if err != nil {
		return task.Task{}, err
	}
	r, err := await(s, ctx, reply)
	if err != nil {
		return task.Task{}, err
	}
	return r.t, r.err
}

// DeleteTask removes a task. Its logs are kept.
func (s *Service) DeleteTask(ctx context.Context, id uuid.UUID) error {
	reply := make(chan error, 1)
	err := s.send(ctx, func(lp *loop) {
		reply <- lp.deleteTask(id)
	})
	if err != nil {
		return err
	}
	res, err := await(s, ctx, reply)
	if err != nil {
		return err
	}
	return res
}

// ExecuteTask dispatches a run immediately, bypassing the schedule.
func (s *Service) ExecuteTask(ctx context.Context, id uuid.UUID) error {
	reply := make(chan error, 1)
	err := s.send(ctx, func(lp *loop) {
		reply <- lp.executeTask(id)
	})
	if err != nil {
		return err
	}
	res, err := await(s, ctx, reply)
	if err != nil {
		return err
	}
	return res
}

// SaveSettings normalizes, persists, and applies cfg. The next tick uses
// the new refresh interval.
func (s *Service) SaveSettings(ctx context.Context, cfg task.Settings) (task.Settings, error) {
	reply := make(chan settingsReply, 1)
	err := s.send(ctx, func(lp *loop) {
		got, err := lp.saveSettings(cfg)
		reply <- settingsReply{got, err}
	})
	if err != nil {
		return task.Settings{}, err
	}
	r, err := await(s, ctx, reply)
	if err != nil {
		return task.Settings{}, err
	}
	return r.cfg, r.err
}

// DismissNotification drops one notification by ID.
func (s *Service) DismissNotification(ctx context.Context, id uuid.UUID) error {
	reply := make(chan error, 1)
	err := s.send(ctx, func(lp *loop) {
		reply <- lp.dismissNotification(id)
	})
	if err != nil {
		return err
	}
	res, err := await(s, ctx, reply)
	if err != nil {
		return err
	}
	return res
}

// ClearNotifications drops the whole notification queue. It returns once
// the loop has applied the clear.
func (s *Service) ClearNotifications(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	err := s.send(ctx, func(lp *loop) {
		lp.state.notifications = nil
		reply <- struct{}{}
	})
	if err != nil {
		return err
	}
	_, err = await(s, ctx, reply)
	return err
}

// Snapshot returns a copy of all state for the front-end boundary.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	err := s.send(ctx, func(lp *loop) {
		reply <- lp.snapshot()
	})
	if err != nil {
		return Snapshot{}, err
	}
	return await(s, ctx, reply)
}

type taskReply struct {
	t   task.Task
	err error
}

type settingsReply struct {
	cfg task.Settings
	err error
}
