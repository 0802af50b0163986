package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskwithme/internal/eventbus"
	"taskwithme/internal/sched"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

const maxNotifications = 10

// state is touched only by the loop goroutine.
type state struct {
	tasks         []task.Task
	logs          []task.ExecutionLog
	cfg           task.Settings
	running       map[uuid.UUID]struct{}
	notifications []task.Notification
}

type loop struct {
	svc   *Service
	state state
	timer *time.Timer
}

// Loop events. Completions of off-loop work re-enter here.
type event interface{ isEvent() }

type execDone struct {
	id    uuid.UUID
	title string
	res   task.ExecutionResult
	err   error
}

type persistFailed struct {
	label string
	err   error
}

func (execDone) isEvent()      {}
func (persistFailed) isEvent() {}

// persistOp is one serialized document write.
type persistOp struct {
	label string
	fn    func() error
}

func (s *Service) run(ctx context.Context) {
	lp := &loop{
		svc:   s,
		state: state{running: map[uuid.UUID]struct{}{}},
	}
	lp.load()

	lp.timer = time.NewTimer(lp.state.cfg.RefreshPeriod())
	defer lp.timer.Stop()
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.intents:
			cmd(lp)
		case ev := <-s.events:
			lp.handleEvent(ev)
		case <-lp.timer.C:
			lp.tick(ctx)
			lp.timer.Reset(lp.state.cfg.RefreshPeriod())
		}
	}
}

// load pulls the persisted documents into memory. A failed load surfaces an
// error notification and leaves that collection empty; the process keeps
// running either way.
func (lp *loop) load() {
	s := lp.svc

	cfg, err := s.st.LoadConfig()
	if err != nil {
		s.log.Error("settings load failed", logx.Err(err))
		cfg = task.DefaultSettings()
		lp.notify(task.LevelError, fmt.Sprintf("Failed to load settings: %v", err))
	}
	lp.state.cfg = cfg

	tasks, err := s.st.LoadTasks()
	if err != nil {
		s.log.Error("task load failed", logx.Err(err))
		lp.notify(task.LevelError, fmt.Sprintf("Failed to load tasks: %v", err))
	}
	lp.state.tasks = tasks

	logs, err := s.st.LoadLogs()
	if err != nil {
		s.log.Error("log load failed", logx.Err(err))
		lp.notify(task.LevelError, fmt.Sprintf("Failed to load logs: %v", err))
	}
	lp.state.logs = logs

	s.log.Info("state loaded",
		logx.Int("tasks", len(lp.state.tasks)),
		logx.Int("logs", len(lp.state.logs)),
	)
}

func (lp *loop) now() time.Time { return lp.svc.now() }

func (lp *loop) notify(level task.NotificationLevel, message string) {
	lp.state.notifications = append(lp.state.notifications, task.NewNotification(level, message, lp.now()))
	for len(lp.state.notifications) > maxNotifications {
		lp.state.notifications = lp.state.notifications[1:]
	}
}

func (lp *loop) publish(typ string, data any) {
	if lp.svc.bus == nil {
		return
	}
	lp.svc.bus.Publish(eventbus.Event{Type: typ, Time: lp.now(), Data: data})
}

// enqueuePersist hands one write to the persist worker. Writes are applied
// in submission order; failures re-enter as persistFailed events.
func (lp *loop) enqueuePersist(label string, fn func() error) {
	lp.svc.persistQ <- persistOp{label: label, fn: fn}
}

func (lp *loop) find(id uuid.UUID) int {
	return task.FindByID(lp.state.tasks, id)
}

func (lp *loop) createTask(title, command, interval string) (task.Task, error) {
	secs, err := task.ValidateDefinition(title, command, interval)
	if err != nil {
		lp.notify(task.LevelWarning, capitalize(err.Error()))
		return task.Task{}, err
	}

	t := task.New(strings.TrimSpace(title), strings.TrimSpace(command), secs, lp.now())
	lp.state.tasks = append(lp.state.tasks, t)
	lp.persistTask(t)
	lp.notify(task.LevelSuccess, fmt.Sprintf("Task '%s' created", t.Title))
	lp.publish(eventbus.TypeTaskCreated, eventbus.TaskChanged{TaskID: t.ID, Title: t.Title, Active: t.Active})
	lp.svc.log.Info("task created", logx.String("title", t.Title), logx.String("id", t.ID.String()))
	return t, nil
}

func (lp *loop) toggleTask(id uuid.UUID) (task.Task, error) {
	i := lp.find(id)
	if i < 0 {
		return task.Task{}, ErrNotFound
	}
	t := &lp.state.tasks[i]
	active := t.Toggle(lp.now())

	status := "paused"
	if active {
		status = "activated"
	}
	lp.persistTask(*t)
	lp.notify(task.LevelInfo, fmt.Sprintf("Task '%s' %s", t.Title, status))
	lp.publish(eventbus.TypeTaskToggled, eventbus.TaskChanged{TaskID: t.ID, Title: t.Title, Active: active})
	return *t, nil
}

func (lp *loop) deleteTask(id uuid.UUID) error {
	i := lp.find(id)
	if i < 0 {
		return ErrNotFound
	}
	title := lp.state.tasks[i].Title
	lp.state.tasks = append(lp.state.tasks[:i], lp.state.tasks[i+1:]...)
	// Logs referencing the task are kept; history outlives the task.
	lp.enqueuePersist("delete task", func() error { return lp.svc.st.DeleteTask(id) })
	lp.notify(task.LevelInfo, fmt.Sprintf("Deleted task '%s'", title))
	lp.publish(eventbus.TypeTaskDeleted, eventbus.TaskChanged{TaskID: id, Title: title})
	return nil
}

func (lp *loop) executeTask(id uuid.UUID) error {
	if _, busy := lp.state.running[id]; busy {
		lp.notify(task.LevelWarning, "Task is already running")
		return ErrAlreadyRunning
	}
	i := lp.find(id)
	if i < 0 {
		return ErrNotFound
	}
	lp.startExecution(lp.state.tasks[i])
	return nil
}

// startExecution marks the task running and launches one goroutine for the
// shell run. The result re-enters the loop as an execDone event.
func (lp *loop) startExecution(t task.Task) {
	s := lp.svc
	lp.state.running[t.ID] = struct{}{}
	lp.notify(task.LevelInfo, fmt.Sprintf("Executing '%s'...", t.Title))

	s.sup.Go0("dispatch.exec", func(ctx context.Context) {
		res, err := s.exec.Execute(t)
		select {
		case s.events <- execDone{id: t.ID, title: t.Title, res: res, err: err}:
		case <-ctx.Done():
		}
	})
}

func (lp *loop) handleEvent(ev event) {
	switch e := ev.(type) {
	case execDone:
		lp.finishExecution(e)
	case persistFailed:
		lp.svc.log.Error("persist failed", logx.String("op", e.label), logx.Err(e.err))
		lp.notify(task.LevelError, fmt.Sprintf("Failed to save: %v", e.err))
	}
}

// finishExecution folds an execution result into the owning task and the
// bounded log collection. A dispatch failure (the shell never ran) mutates
// nothing beyond the running set.
func (lp *loop) finishExecution(e execDone) {
	delete(lp.state.running, e.id)

	if e.err != nil {
		// The apperr kind already prefixes the message ("Execution error: ...").
		lp.notify(task.LevelError, e.err.Error())
		return
	}

	i := lp.find(e.id)
	if i < 0 {
		// Deleted while running; drop the result.
		return
	}
	t := &lp.state.tasks[i]
	now := lp.now()
	t.ApplyResult(now, e.res)

	lp.state.logs = append(lp.state.logs, task.ExecutionLog{
		ID:         uuid.New(),
		TaskID:     e.id,
		Timestamp:  now,
		Success:    e.res.Success,
		Output:     e.res.Output,
		DurationMS: e.res.DurationMS,
	})
	for len(lp.state.logs) > lp.state.cfg.MaxLogs {
		lp.state.logs = lp.state.logs[1:]
	}

	if e.res.Success {
		lp.notify(task.LevelSuccess, fmt.Sprintf("Task '%s' completed successfully", t.Title))
	} else {
		lp.notify(task.LevelError, fmt.Sprintf("Task '%s' failed", t.Title))
	}

	lp.persistTask(*t)
	logsCopy := append([]task.ExecutionLog(nil), lp.state.logs...)
	lp.enqueuePersist("save logs", func() error { return lp.svc.st.SaveLogs(logsCopy) })

	lp.publish(eventbus.TypeTaskCompleted, eventbus.TaskCompleted{TaskID: e.id, Title: t.Title, Result: e.res})
	lp.svc.log.Info("execution finished",
		logx.String("title", t.Title),
		logx.Bool("success", e.res.Success),
		logx.Uint64("duration_ms", e.res.DurationMS),
	)
}

func (lp *loop) saveSettings(cfg task.Settings) (task.Settings, error) {
	cfg.Normalize()
	lp.state.cfg = cfg
	lp.enqueuePersist("save settings", func() error { return lp.svc.st.SaveConfig(cfg) })
	lp.notify(task.LevelSuccess, "Settings saved")
	lp.publish(eventbus.TypeSettingsSaved, cfg)
	lp.resetTick()
	return cfg, nil
}

func (lp *loop) dismissNotification(id uuid.UUID) error {
	for i, n := range lp.state.notifications {
		if n.ID == id {
			lp.state.notifications = append(lp.state.notifications[:i], lp.state.notifications[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (lp *loop) snapshot() Snapshot {
	running := make([]uuid.UUID, 0, len(lp.state.running))
	for id := range lp.state.running {
		running = append(running, id)
	}
	return Snapshot{
		Tasks:         append([]task.Task(nil), lp.state.tasks...),
		Logs:          append([]task.ExecutionLog(nil), lp.state.logs...),
		Settings:      lp.state.cfg,
		Running:       running,
		Notifications: append([]task.Notification(nil), lp.state.notifications...),
	}
}

// tick launches every due task.
func (lp *loop) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	due := sched.Due(lp.now(), lp.state.tasks, lp.state.running)
	for _, id := range due {
		if i := lp.find(id); i >= 0 {
			lp.startExecution(lp.state.tasks[i])
		}
	}
}

// resetTick re-arms the tick timer with the current refresh interval.
func (lp *loop) resetTick() {
	if !lp.timer.Stop() {
		select {
		case <-lp.timer.C:
		default:
		}
	}
	lp.timer.Reset(lp.state.cfg.RefreshPeriod())
}

func (lp *loop) persistTask(t task.Task) {
	lp.enqueuePersist("save task", func() error { return lp.svc.st.SaveTask(t) })
}

// persistWorker applies document writes one at a time, in submission order.
// Failures re-enter the loop as events; at shutdown the pending queue is
// drained so accepted writes reach disk.
func (s *Service) persistWorker(ctx context.Context) {
	apply := func(op persistOp) {
		err := op.fn()
		if err == nil {
			return
		}
		select {
		case s.events <- persistFailed{label: op.label, err: err}:
		default:
			s.log.Error("persist failed, loop busy", logx.String("op", op.label), logx.Err(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case op := <-s.persistQ:
					if err := op.fn(); err != nil {
						s.log.Error("persist failed during shutdown", logx.String("op", op.label), logx.Err(err))
					}
				default:
					return
				}
			}
		case op := <-s.persistQ:
			apply(op)
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
