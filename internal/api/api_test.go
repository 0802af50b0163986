package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskwithme/internal/config"
	"taskwithme/internal/dispatch"
	"taskwithme/internal/eventbus"
	"taskwithme/internal/store"
	"taskwithme/internal/task"
	"taskwithme/pkg/logx"
)

type execFunc func(t task.Task) (task.ExecutionResult, error)

func (f execFunc) Execute(t task.Task) (task.ExecutionResult, error) { return f(t) }

func newTestServer(t *testing.T, cfg config.HTTPConfig, fn execFunc) (*Server, *dispatch.Service) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	if fn == nil {
		fn = func(task.Task) (task.ExecutionResult, error) {
			return task.ExecutionResult{Success: true, Output: "ok", DurationMS: 1}, nil
		}
	}
	core := dispatch.New(dispatch.Options{Store: st, Executor: fn, Bus: eventbus.New(), Log: logx.Nop()})
	core.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = core.Stop(ctx)
	})

	return NewServer(cfg, core, logx.Nop()), core
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) taskResponse {
	t.Helper()
	var out taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateToggleRunDelete(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
		"title": "backup", "command": "echo hi", "interval": "3600",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeTask(t, rec)
	assert.False(t, created.Active)
	assert.Equal(t, "1h", created.IntervalDisplay)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/"+created.ID.String()+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeTask(t, rec).Active)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/"+created.ID.String()+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/v1/tasks/"+created.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateAcceptsNumericInterval(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/tasks/", map[string]any{
		"title": "x", "command": "true", "interval": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(120), decodeTask(t, rec).IntervalSeconds)
}

func TestValidationMapsTo400(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	cases := []map[string]any{
		{"title": "", "command": "true", "interval": "60"},
		{"title": "x", "command": "", "interval": "60"},
		{"title": "x", "command": "true", "interval": "never"},
		{"title": "x", "command": "true", "interval": "-1"},
	}
	for _, body := range cases {
		rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestUnknownIDMapsTo404(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	id := "11111111-2222-3333-4444-555555555555"
	rec := doJSON(t, h, http.MethodPost, "/v1/tasks/"+id+"/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/v1/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/not-a-uuid/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateRunMapsTo409(t *testing.T) {
	release := make(chan struct{})
	blocking := execFunc(func(task.Task) (task.ExecutionResult, error) {
		<-release
		return task.ExecutionResult{Success: true}, nil
	})
	srv, core := newTestServer(t, config.HTTPConfig{}, blocking)
	h := srv.Handler()
	defer close(release)

	rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
		"title": "slow", "command": "sleep 5", "interval": "3600",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/"+created.ID.String()+"/run", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.Now().Add(3 * time.Second)
	for {
		snap, err := core.Snapshot(context.Background())
		require.NoError(t, err)
		if len(snap.Running) == 1 {
			break
		}
		require.False(t, time.Now().After(deadline), "run never started")
		time.Sleep(5 * time.Millisecond)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/"+created.ID.String()+"/run", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestListTasksSearchAndFilter(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	for _, tc := range []struct {
		title, command string
		activate       bool
	}{
		{"db backup", "pg_dump mydb", true},
		{"ping check", "ping -c1 example.org", false},
		{"disk usage", "df -h", false},
	} {
		rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
			"title": tc.title, "command": tc.command, "interval": "60",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		if tc.activate {
			created := decodeTask(t, rec)
			rec = doJSON(t, h, http.MethodPost, "/v1/tasks/"+created.ID.String()+"/toggle", nil)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	}

	list := func(query string) []taskResponse {
		rec := doJSON(t, h, http.MethodGet, "/v1/tasks/"+query, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []taskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("?filter=active"), 1)
	assert.Len(t, list("?filter=inactive"), 2)
	// Search matches title or command, case-insensitive.
	assert.Len(t, list("?q=PING"), 1)
	assert.Len(t, list("?q=df"), 1)
	assert.Len(t, list("?q=nothing"), 0)
}

func TestSettingsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg task.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, task.DefaultSettings(), cfg)

	cfg.RefreshInterval = 0 // normalized up to 1
	cfg.MaxLogs = 3         // normalized up to 10
	cfg.Theme = task.ThemeLight
	rec = doJSON(t, h, http.MethodPut, "/v1/settings", cfg)
	require.Equal(t, http.StatusOK, rec.Code)
	var saved task.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, int64(1), saved.RefreshInterval)
	assert.Equal(t, 10, saved.MaxLogs)
	assert.Equal(t, task.ThemeLight, saved.Theme)
}

func TestNotificationsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
		"title": "noisy", "command": "true", "interval": "60",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/notifications/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []task.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, task.LevelSuccess, notes[0].Level)

	rec = doJSON(t, h, http.MethodDelete, "/v1/notifications/"+notes[0].ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/v1/notifications/"+notes[0].ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/v1/notifications/", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOverview(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
			"title": fmt.Sprintf("t%d", i), "command": "true", "interval": "60",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out overviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 3, out.TotalTasks)
	assert.Equal(t, 0, out.ActiveTasks)
	assert.Zero(t, out.TotalRuns)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{Token: "s3cret"}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/tasks/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/tasks/?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{RatePerSec: 0.1, RateBurst: 1}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/tasks/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/v1/tasks/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestListTemplates(t *testing.T) {
	srv, _ := newTestServer(t, config.HTTPConfig{}, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []task.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 4)
	assert.Equal(t, "System Cleanup", out[0].Name)
	assert.Equal(t, int64(60), out[3].IntervalSeconds)

	// A template makes a valid create payload.
	rec = doJSON(t, h, http.MethodPost, "/v1/tasks/", map[string]any{
		"title": out[3].Name, "command": out[3].Command, "interval": out[3].IntervalSeconds,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}
