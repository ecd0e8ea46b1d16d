// Package api exposes the HTTP interface of the pipeline service:
// health probes, the status dashboard, feed artifacts and Prometheus
// metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/replicate"
	"github.com/F8ai/formulation-pubmed/internal/status"
	"github.com/F8ai/formulation-pubmed/internal/store"
)

const statusTimeout = 10 * time.Second

// Server wires HTTP handlers to the store and the status collector.
type Server struct {
	router    chi.Router
	store     store.Store
	collector *status.Collector
	repl      replicate.Replicator
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st store.Store, collector *status.Collector, repl replicate.Replicator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     st,
		collector: collector,
		repl:      repl,
		logger:    logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/", s.dashboard)
	r.Get("/status", s.getStatus)
	r.Get("/feeds/{name}.xml", s.getFeed)
	r.Route("/api", func(r chi.Router) {
		r.Get("/articles/{pmid}", s.getArticle)
		r.Get("/articles/{pmid}/chunks", s.getChunks)
		r.Get("/deadletters", s.getDeadLetters)
		r.Get("/replication", s.getReplication)
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

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency of every stage.
	if _, err := store.ListArticleIDs(r.Context(), s.store); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dashboard serves the last published HTML status page, falling back
// to a fresh render when none exists yet.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Read(r.Context(), store.StatusPageKey)
	if errors.Is(err, store.ErrNotFound) {
		s.getStatus(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		s.logger.Warn("dashboard write failed", zap.Error(err))
	}
}

// getStatus collects a live report rather than serving the scheduled
// artifact, so operators always see current counts.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	report, err := s.collector.Collect(ctx)
	if err != nil {
		s.logger.Error("status collection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect status")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := s.store.Read(r.Context(), store.FeedKey(name))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "feed not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("feed write failed", zap.Error(err))
	}
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	pmid := chi.URLParam(r, "pmid")
	rec, err := store.ReadMetadata(r.Context(), s.store, pmid)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load article")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getChunks(w http.ResponseWriter, r *http.Request) {
	pmid := chi.URLParam(r, "pmid")
	chunks, err := store.ReadChunks(r.Context(), s.store, pmid)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chunks not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load chunks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pmid": pmid, "chunks": chunks})
}

func (s *Server) getDeadLetters(w http.ResponseWriter, r *http.Request) {
	pmids, err := store.ListDeadLetters(r.Context(), s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	letters := make([]any, 0, len(pmids))
	for _, pmid := range pmids {
		dl, err := store.ReadDeadLetter(r.Context(), s.store, pmid)
		if err != nil {
			continue
		}
		letters = append(letters, dl)
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters})
}

func (s *Server) getReplication(w http.ResponseWriter, r *http.Request) {
	st, err := s.repl.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read replication status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
