// Package api exposes the analysis pipeline over HTTP: session lifecycle,
// dataset upload with cleaning, dashboard synthesis and chat turns. Sessions
// are held in memory and never shared between callers.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rabbitlabs/rabbit/internal/pipeline"
)

// Config is the server configuration.
type Config struct {
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline

	// Optional speech collaborators. Nil means text-only.
	Transcriber Transcriber
	Speaker     Speaker
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	return nil
}

// Server holds the session store and the pipeline it serves.
type Server struct {
	log         *slog.Logger
	pipe        *pipeline.Pipeline
	transcriber Transcriber
	speaker     Speaker

	mu       sync.RWMutex
	sessions map[uuid.UUID]*pipeline.Session
}

// New creates a server from the given configuration.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		log:         cfg.Logger,
		pipe:        cfg.Pipeline,
		transcriber: cfg.Transcriber,
		speaker:     cfg.Speaker,
		sessions:    make(map[uuid.UUID]*pipeline.Session),
	}, nil
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/sessions", s.createSession)
	r.Post("/api/sessions/{id}/dataset", s.uploadDataset)
	r.Post("/api/sessions/{id}/dashboard", s.dashboard)
	r.Post("/api/sessions/{id}/chat", s.chat)
	r.Get("/api/sessions/{id}/history", s.history)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// session resolves the {id} URL parameter to a stored session. On failure it
// writes the error response and returns false.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return nil, false
	}

	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}
