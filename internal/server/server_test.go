package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/repositories"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/shared"
)

type fixture struct {
	server   *Server
	registry *scheduler.Registry
	tracks   *repositories.TrackRepository
	release  chan struct{}
}

func setupServer(t *testing.T, token string) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	ctx := context.Background()
	registry := scheduler.NewRegistry(repositories.NewTaskRepository(db), nil)
	release := make(chan struct{})

	defs := []scheduler.Definition{
		{Name: "first", DefaultInterval: 60, Enabled: true, Func: func(context.Context) (scheduler.Result, error) {
			return scheduler.Result{OK: true, TracksProcessed: 3}, nil
		}},
		{Name: "second", DefaultInterval: 60, Enabled: true, Dependencies: []string{"first"}, Func: func(context.Context) (scheduler.Result, error) {
			return scheduler.Result{OK: true}, nil
		}},
		{Name: "blocking", DefaultInterval: 60, Enabled: true, Func: func(ctx context.Context) (scheduler.Result, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return scheduler.Result{OK: true}, nil
		}},
	}
	for _, def := range defs {
		if err := registry.Register(ctx, def); err != nil {
			t.Fatalf("failed to register %s: %v", def.Name, err)
		}
	}

	tracks := repositories.NewTrackRepository(db)
	for _, tr := range []struct{ id, name, artist string }{
		{"t1", "Song One", "Artist"},
		{"t2", "Song Two", "Artist"},
	} {
		if err := tracks.AddTrack(ctx, tr.id, tr.name, tr.artist, models.SourceManual); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}
	if err := tracks.SetTrackStatus(ctx, "t2", models.StatusCompleted, ""); err != nil {
		t.Fatalf("failed to set status: %v", err)
	}

	s := NewServer("127.0.0.1:0", token, registry, tracks, nil)
	return &fixture{server: s, registry: registry, tracks: tracks, release: release}
}

func (f *fixture) do(t *testing.T, method, target string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHealth(t *testing.T) {
	f := setupServer(t, "secret")
	rec, body := f.do(t, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestAuth(t *testing.T) {
	f := setupServer(t, "secret")

	tests := []struct {
		name   string
		target string
		header []string
		want   int
	}{
		{"missing token", "/v1/tasks", nil, http.StatusUnauthorized},
		{"wrong bearer", "/v1/tasks", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized},
		{"bearer", "/v1/tasks", []string{"Authorization", "Bearer secret"}, http.StatusOK},
		{"query token", "/v1/tasks?token=secret", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodGet, tt.target, tt.header...)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && errorCode(body) != "unauthorized" {
				t.Errorf("unexpected error body %v", body)
			}
		})
	}

	t.Run("disabled without token", func(t *testing.T) {
		open := setupServer(t, "")
		if rec, _ := open.do(t, http.MethodGet, "/v1/tasks"); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestTasks(t *testing.T) {
	f := setupServer(t, "")

	t.Run("list", func(t *testing.T) {
		rec, body := f.do(t, http.MethodGet, "/v1/tasks")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		tasks, _ := body["tasks"].([]any)
		if len(tasks) != 3 {
			t.Fatalf("expected 3 tasks, got %v", body)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec, body := f.do(t, http.MethodGet, "/v1/tasks/second")
		if rec.Code != http.StatusOK || body["name"] != "second" {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
		if rec, _ := f.do(t, http.MethodGet, "/v1/tasks/missing"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("run unknown", func(t *testing.T) {
		rec, body := f.do(t, http.MethodPost, "/v1/tasks/missing/run")
		if rec.Code != http.StatusNotFound || errorCode(body) != "not_found" {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("run with unmet dependencies", func(t *testing.T) {
		rec, body := f.do(t, http.MethodPost, "/v1/tasks/second/run")
		if rec.Code != http.StatusPreconditionFailed {
			t.Fatalf("expected 412, got %d", rec.Code)
		}
		e := body["error"].(map[string]any)
		if unmet, _ := e["unmet"].([]any); len(unmet) != 1 || unmet[0] != "first" {
			t.Errorf("expected first to be unmet, got %v", e)
		}
	})

	t.Run("run and wait", func(t *testing.T) {
		rec, body := f.do(t, http.MethodPost, "/v1/tasks/first/run?wait=true")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %v", rec.Code, body)
		}
		if body["message"] != "Task first completed successfully" {
			t.Errorf("unexpected message %v", body["message"])
		}

		rec, _ = f.do(t, http.MethodPost, "/v1/tasks/second/run?wait=true")
		if rec.Code != http.StatusOK {
			t.Errorf("expected dependencies met after first ran, got %d", rec.Code)
		}
	})

	t.Run("forced run skips dependencies", func(t *testing.T) {
		g := setupServer(t, "")
		rec, _ := g.do(t, http.MethodPost, "/v1/tasks/second/run?force=true&wait=true")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("async run and conflict", func(t *testing.T) {
		rec, body := f.do(t, http.MethodPost, "/v1/tasks/blocking/run")
		if rec.Code != http.StatusAccepted || body["status"] != "accepted" {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
		waitFor(t, func() bool { return f.registry.IsRunning("blocking") })

		rec, body = f.do(t, http.MethodPost, "/v1/tasks/blocking/run")
		if rec.Code != http.StatusConflict || errorCode(body) != "conflict" {
			t.Errorf("expected 409, got %d %v", rec.Code, body)
		}

		_, health := f.do(t, http.MethodGet, "/healthz")
		if running, _ := health["running"].([]any); len(running) != 1 {
			t.Errorf("expected blocking in flight, got %v", health)
		}

		close(f.release)
		waitFor(t, func() bool { return !f.registry.IsRunning("blocking") })
	})
}

func TestRuns(t *testing.T) {
	f := setupServer(t, "")
	for range 3 {
		f.do(t, http.MethodPost, "/v1/tasks/first/run?wait=true")
	}

	t.Run("task history", func(t *testing.T) {
		rec, body := f.do(t, http.MethodGet, "/v1/tasks/first/runs?limit=2")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		runs, _ := body["runs"].([]any)
		if len(runs) != 2 {
			t.Errorf("expected 2 runs, got %d", len(runs))
		}
	})

	t.Run("history of unknown task", func(t *testing.T) {
		if rec, _ := f.do(t, http.MethodGet, "/v1/tasks/missing/runs"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("recent runs", func(t *testing.T) {
		_, body := f.do(t, http.MethodGet, "/v1/runs")
		runs, _ := body["runs"].([]any)
		if len(runs) != 3 {
			t.Errorf("expected 3 runs, got %d", len(runs))
		}
	})

	t.Run("empty history is a list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tasks/second/runs", nil))
		if !strings.Contains(rec.Body.String(), `"runs":[]`) {
			t.Errorf("expected empty list, got %s", rec.Body.String())
		}
	})
}

func TestTracks(t *testing.T) {
	f := setupServer(t, "")

	t.Run("all", func(t *testing.T) {
		_, body := f.do(t, http.MethodGet, "/v1/tracks")
		if body["count"] != float64(2) {
			t.Errorf("expected 2 tracks, got %v", body["count"])
		}
	})

	t.Run("by status", func(t *testing.T) {
		_, body := f.do(t, http.MethodGet, "/v1/tracks?status=completed")
		tracks, _ := body["tracks"].([]any)
		if len(tracks) != 1 {
			t.Fatalf("expected 1 completed track, got %v", body)
		}
		if tracks[0].(map[string]any)["id"] != "t2" {
			t.Errorf("unexpected track %v", tracks[0])
		}
	})

	t.Run("stats", func(t *testing.T) {
		_, body := f.do(t, http.MethodGet, "/v1/stats")
		if body["total"] != float64(2) {
			t.Errorf("expected total 2, got %v", body)
		}
		counts, _ := body["by_status"].(map[string]any)
		if counts["completed"] != float64(1) {
			t.Errorf("unexpected counts %v", counts)
		}
	})
}
