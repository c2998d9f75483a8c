package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/go-chi/chi/v5"
)

const defaultLimit = 20

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Post("/run", s.handleRunTask)
				r.Get("/runs", s.handleTaskRuns)
			})
		})
		r.Get("/runs", s.handleRecentRuns)
		r.Get("/tracks", s.handleListTracks)
		r.Get("/stats", s.handleStats)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": s.registry.Running(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.States(r.Context())
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": infos})
}

func (s *Server) taskInfo(r *http.Request, name string) (*scheduler.TaskInfo, error) {
	infos, err := s.registry.States(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Name == name {
			return &infos[i], nil
		}
	}
	return nil, shared.ErrUnknownTask
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, err := s.taskInfo(r, name)
	switch {
	case errors.Is(err, shared.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "not_found", "Unknown task: "+name)
	case err != nil:
		s.logger.Error("get task", "task", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load task")
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

// handleRunTask checks that the task can start and runs it in the background. With wait=true
// it runs in the request and responds with the sealed run instead.
func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force := queryBool(r, "force")

	if _, ok := s.registry.Definition(name); !ok {
		writeError(w, http.StatusNotFound, "not_found", "Unknown task: "+name)
		return
	}
	if s.registry.IsRunning(name) {
		writeError(w, http.StatusConflict, "conflict", scheduler.Message(name, nil, shared.ErrAlreadyRunning))
		return
	}
	if !force {
		met, unmet, err := s.registry.CheckDependencies(r.Context(), name)
		if err != nil {
			s.logger.Error("check dependencies", "task", name, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to check dependencies")
			return
		}
		if !met {
			writeJSON(w, http.StatusPreconditionFailed, map[string]any{
				"error": map[string]any{"code": "dependencies_unmet", "message": "Dependencies not met", "unmet": unmet},
			})
			return
		}
	}

	if queryBool(r, "wait") {
		run, err := s.registry.RunTask(r.Context(), name, force)
		s.writeRunResult(w, name, run, err)
		return
	}

	go func() {
		ok, msg := s.registry.Run(s.runCtx, name, force)
		if !ok {
			s.logger.Warn("triggered task did not complete", "task", name, "message", msg)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"task": name, "forced": force, "status": "accepted"})
}

func (s *Server) writeRunResult(w http.ResponseWriter, name string, run *models.TaskRun, err error) {
	msg := scheduler.Message(name, run, err)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "message": msg})
	case errors.Is(err, shared.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, shared.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "conflict", msg)
	case errors.Is(err, shared.ErrDependenciesUnmet):
		writeError(w, http.StatusPreconditionFailed, "dependencies_unmet", msg)
	case errors.Is(err, shared.ErrTaskFailed):
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "message": msg})
	default:
		s.logger.Error("run task", "task", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

func (s *Server) handleTaskRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runs, err := s.registry.History(r.Context(), name, queryLimit(r))
	switch {
	case errors.Is(err, shared.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "not_found", "Unknown task: "+name)
	case err != nil:
		s.logger.Error("task history", "task", name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load runs")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"runs": nonNil(runs)})
	}
}

func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.registry.RecentRuns(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("recent runs", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": nonNil(runs)})
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	var (
		tracks []*models.Track
		err    error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		tracks, err = s.tracks.GetTracksByStatus(r.Context(), models.ParseStatus(status))
	} else {
		tracks, err = s.tracks.ListTracks(r.Context())
	}
	if err != nil {
		s.logger.Error("list tracks", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load tracks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": nonNil(tracks), "count": len(tracks)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.tracks.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("track stats", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load stats")
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_status": counts, "total": total})
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return min(limit, 500)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
