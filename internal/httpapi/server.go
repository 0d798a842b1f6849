package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo"
	"pulsemon/internal/session"
)

type Server struct {
	Logger  *zap.Logger
	Session *session.MonitoringSession
}

func NewServer(l *zap.Logger, s *session.MonitoringSession) *Server {
	return &Server{Logger: l, Session: s}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleListTargets)
		r.Post("/targets", s.handleCreateTarget)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.Put("/targets/{id}", s.handleUpdateTarget)
		r.Delete("/targets/{id}", s.handleDeleteTarget)
		r.Post("/targets/{id}/ping", s.handlePing)
		r.Get("/targets/{id}/stats", s.handleStats)
		r.Get("/targets/{id}/results", s.handleResults)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Get("/monitor", s.handleMonitorState)
		r.Post("/monitor/start", s.handleStart)
		r.Post("/monitor/stop", s.handleStop)
	})

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Configuration problems
// are the caller's fault; everything else is ours.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrConfiguration):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.Logger.Warn("api_error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.Session.ListTargets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if targets == nil {
		targets = []domain.Target{}
	}
	s.writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var t domain.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload"})
		return
	}
	t.ID = ""
	if err := s.Session.CreateTarget(r.Context(), &t); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("api_target_created", zap.String("target_id", string(t.ID)), zap.String("url", t.URL))
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	t, err := s.Session.GetTarget(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	var t domain.Target
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload"})
		return
	}
	t.ID = domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Session.UpdateTarget(r.Context(), &t); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Session.DeleteTarget(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	res, err := s.Session.Ping(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	st, err := s.Session.Stats(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	results, err := s.Session.Results(r.Context(), id, 100)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.ProbeResult{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Session.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var set domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload"})
		return
	}
	if err := s.Session.UpdateSettings(r.Context(), set); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleMonitorState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.Session.Running()})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Session.Start()
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.Session.Running()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Session.Stop()
	s.writeJSON(w, http.StatusOK, map[string]bool{"running": s.Session.Running()})
}
