package audit

import (
	"context"
	"sync/atomic"

	"taskwithme/internal/eventbus"
	"taskwithme/internal/runtime/supervisor"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

// Recorder bridges the event bus to the audit store. It appends one entry
// per completed execution while the user's log_to_file setting is on, and
// tracks that setting through settings.saved events. Delivery is the bus's
// non-blocking best-effort: a saturated recorder drops events rather than
// slow the dispatcher.
type Recorder struct {
	st  Store
	bus eventbus.Bus
	log logx.Logger

	enabled atomic.Bool
	sup     *supervisor.Supervisor
	unsub   func()
}

// NewRecorder wires a recorder. st may be nil (auditing disabled), in which
// case the recorder is inert. enabled seeds the gate from the loaded
// settings; later saves update it.
func NewRecorder(st Store, bus eventbus.Bus, log logx.Logger, enabled bool) *Recorder {
	r := &Recorder{st: st, bus: bus, log: log}
	r.enabled.Store(enabled)
	return r
}

func (r *Recorder) Start(ctx context.Context) {
	if r.st == nil || r.bus == nil {
		return
	}
	ch, unsub := r.bus.Subscribe(64)
	r.unsub = unsub
	r.sup = supervisor.New(ctx, supervisor.WithLogger(r.log))
	r.sup.Go0("audit.recorder", func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				r.handle(ctx, e)
			}
		}
	})
}

func (r *Recorder) Stop(ctx context.Context) error {
	if r.unsub != nil {
		r.unsub()
	}
	var err error
	if r.sup != nil {
		err = r.sup.Stop(ctx)
	}
	if r.st != nil {
		if cerr := r.st.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Recorder) handle(ctx context.Context, e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeSettingsSaved:
		if cfg, ok := e.Data.(task.Settings); ok {
			r.enabled.Store(cfg.LogToFile)
		}
	case eventbus.TypeTaskCompleted:
		if !r.enabled.Load() {
			return
		}
		done, ok := e.Data.(eventbus.TaskCompleted)
		if !ok {
			return
		}
		entry := Entry{
			At:         e.Time,
			TaskID:     done.TaskID,
			Title:      done.Title,
			Success:    done.Result.Success,
			Output:     done.Result.Output,
			DurationMS: done.Result.DurationMS,
		}
		if err := r.st.Append(ctx, entry); err != nil {
			r.log.Error("audit append failed", logx.Err(err))
		}
	}
}
