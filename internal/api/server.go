// Package api exposes the HTTP interface for the ingestion service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/metrics"
	"github.com/yamelab/medref/internal/queue"
)

// Collector is the orchestration surface the API drives.
type Collector interface {
	CollectAll(ctx context.Context, force bool) ingest.CollectionSummary
	CollectOne(ctx context.Context, name string, force bool) (ingest.CollectionResult, error)
	Domains() []string
}

// Server wires HTTP handlers to the orchestrator and stores.
type Server struct {
	router    chi.Router
	collector Collector
	q         queue.Store
	runs      queue.RunStore
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(collector Collector, q queue.Store, runs queue.RunStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{collector: collector, q: q, runs: runs, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(15 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collect", s.collectAll)
		r.Post("/collect/{domain}", s.collectOne)
		r.Get("/domains", s.listDomains)
		r.Route("/queue", func(r chi.Router) {
			r.Post("/items", s.enqueueItem)
			r.Get("/stats", s.queueStats)
		})
		r.Get("/runs", s.listRuns)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Collection requests always answer 200 with the summary body; per-domain
// failures are data, not transport errors.
func (s *Server) collectAll(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	summary := s.collector.CollectAll(r.Context(), force)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) collectOne(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	force := r.URL.Query().Get("force") == "true"

	result, err := s.collector.CollectOne(r.Context(), domain, force)
	if err != nil {
		var cfgErr *ingest.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domain": domain, "result": result})
}

func (s *Server) listDomains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"domains": s.collector.Domains()})
}

type enqueueRequest struct {
	Source     string `json:"source"`
	Lang       string `json:"lang"`
	URLOrTitle string `json:"urlOrTitle"`
	Priority   int    `json:"priority"`
}

func (s *Server) enqueueItem(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Source == "" || req.URLOrTitle == "" {
		writeError(w, http.StatusBadRequest, "source and urlOrTitle are required")
		return
	}

	inserted, err := s.q.Enqueue(r.Context(), queue.Item{
		Source:     req.Source,
		Lang:       req.Lang,
		URLOrTitle: req.URLOrTitle,
		Priority:   req.Priority,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"inserted": inserted})
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.q.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, c := range counts {
		metrics.SetQueueDepth(c.Source, string(c.Status), c.Count)
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": counts})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
