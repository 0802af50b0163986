// Package app wires the daemon together: config manager, logging, event
// bus, store, dispatcher, audit recorder, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"taskwithme/internal/api"
	"taskwithme/internal/audit"
	"taskwithme/internal/config"
	"taskwithme/internal/dispatch"
	"taskwithme/internal/eventbus"
	"taskwithme/internal/exec"
	"taskwithme/internal/runtime/supervisor"
	"taskwithme/internal/store"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store *store.Store
	disp  *dispatch.Service
	rec   *audit.Recorder
	api   *api.Server

	sup *supervisor.Supervisor
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetValidator(func(cfg *config.Config) error { return cfg.Validate() })

	cfg, err := cfgm.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// No bootstrap file is fine; run on defaults and keep watching in
		// case one shows up.
		cfg = config.Default()
		cfgm.Commit(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir, err = store.DefaultDir()
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
	}
	st, err := store.Open(dataDir)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("data directory ready", logx.String("dir", st.Dir()))

	bus := eventbus.New()

	auditCfg, err := mapAuditConfig(cfg, st.Dir())
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	auditStore, err := audit.Open(auditCfg, log.With(logx.String("comp", "audit")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if auditStore != nil {
		log.Info("audit enabled", logx.String("driver", auditCfg.Driver), logx.String("path", auditCfg.Path))
	}

	// Seed the audit gate from the persisted user settings; the recorder
	// follows settings.saved events afterwards.
	settings, err := st.LoadConfig()
	if err != nil {
		settings = task.DefaultSettings()
	}

	runner := exec.New(log.With(logx.String("comp", "exec")))
	disp := dispatch.New(dispatch.Options{
		Store:    st,
		Executor: runner,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "dispatch")),
	})
	rec := audit.NewRecorder(auditStore, bus, log.With(logx.String("comp", "audit")), settings.LogToFile)
	srv := api.NewServer(cfg.HTTP, disp, log.With(logx.String("comp", "http")))

	return &App{
		cfgm:  cfgm,
		log:   log,
		logs:  logSvc,
		bus:   bus,
		store: st,
		disp:  disp,
		rec:   rec,
		api:   srv,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.disp.Start(a.sup.Context())
	a.rec.Start(a.sup.Context())

	a.sup.Go("http.serve", func(ctx context.Context) error {
		err := a.api.Start()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	a.sup.Go0("http.shutdown", func(ctx context.Context) {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.api.Shutdown(shCtx)
	})

	a.sup.Go0("config.watch", func(ctx context.Context) {
		_ = a.cfgm.Watch(ctx)
	})
	a.sup.Go0("config.apply", a.applyConfigUpdates)

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		_ = a.sup.Stop(ctx)
	}
	_ = a.disp.Stop(ctx)
	_ = a.rec.Stop(ctx)
	err := a.logs.Close()
	return err
}

// applyConfigUpdates consumes committed config reloads. Logging re-applies
// live; the HTTP surface and audit driver need a restart, which is called
// out in the log.
func (a *App) applyConfigUpdates(ctx context.Context) {
	ch := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(ch)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config changed", append(attrs, logx.Any("sections", changed))...)

			for _, section := range changed {
				switch section {
				case "logging":
					a.logs.Apply(cfg.Logging)
				case "http", "audit", "data_dir":
					a.log.Warn("section needs restart to apply", logx.String("section", section))
				}
			}
			prev = cfg
		}
	}
}

func mapAuditConfig(cfg *config.Config, dataDir string) (audit.Config, error) {
	busy, err := config.ParseDurationOrDefault("audit.busy_timeout", cfg.Audit.BusyTimeout, 5*time.Second)
	if err != nil {
		return audit.Config{}, err
	}
	out := audit.Config{
		Driver:      cfg.Audit.Driver,
		Path:        cfg.Audit.Path,
		BusyTimeout: busy,
	}
	if out.Path == "" {
		switch out.Driver {
		case "sqlite", "sqlite3":
			out.Path = filepath.Join(dataDir, "audit.db")
		default:
			out.Path = filepath.Join(dataDir, "audit.jsonl")
		}
	}
	return out, nil
}
