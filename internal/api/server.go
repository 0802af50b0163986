// Package api exposes the dispatcher's intents as a JSON HTTP API. It is
// the front-end boundary: requests become intents, responses are state
// snapshots and typed errors.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"taskwithme/internal/config"
	"taskwithme/internal/dispatch"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

// Core is the intent surface the server fronts. *dispatch.Service
// implements it.
type Core interface {
	CreateTask(ctx context.Context, title, command, interval string) (task.Task, error)
	ToggleTask(ctx context.Context, id uuid.UUID) (task.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ExecuteTask(ctx context.Context, id uuid.UUID) error
	SaveSettings(ctx context.Context, cfg task.Settings) (task.Settings, error)
	DismissNotification(ctx context.Context, id uuid.UUID) error
	ClearNotifications(ctx context.Context) error
	Snapshot(ctx context.Context) (dispatch.Snapshot, error)
}

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	core       Core
	log        logx.Logger
}

// NewServer constructs the HTTP API server.
func NewServer(cfg config.HTTPConfig, core Core, log logx.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	if cfg.RatePerSec > 0 {
		router.Use(RateLimitMiddleware(cfg.RatePerSec, cfg.RateBurst))
	}

	s := &Server{
		router: router,
		core:   core,
		log:    log,
	}
	s.registerRoutes(cfg.Token)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.log.Info("http server listening", logx.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(token string) {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/v1", func(r chi.Router) {
		if token != "" {
			r.Use(AuthMiddleware(token))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)

			r.Route("/{taskID}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteTask)
				r.Post("/toggle", s.handleToggleTask)
				r.Post("/run", s.handleRunTask)
			})
		})

		r.Get("/templates", s.handleListTemplates)

		r.Get("/logs", s.handleListLogs)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Delete("/", s.handleClearNotifications)
			r.Delete("/{notificationID}", s.handleDismissNotification)
		})

		r.Get("/overview", s.handleOverview)
	})
}
