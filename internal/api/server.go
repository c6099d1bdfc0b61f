package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sisko/internal/config"
	"sisko/internal/export"
	"sisko/internal/metrics"
	"sisko/internal/queue"
	"sisko/internal/syncer"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes a local admin/status HTTP API: queue inspection, manual
// sync/retry triggers, conflict resolution and the audit export. It is the
// surface the presentation layer polls for badge counts.
type Server struct {
	cfg        config.AdminConfig
	queue      *queue.Manager
	engine     *syncer.Engine
	exportPath string
	logger     *zerolog.Logger
	server     *http.Server
}

func NewServer(cfg config.AdminConfig, q *queue.Manager, engine *syncer.Engine, exportPath string, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		queue:      q,
		engine:     engine,
		exportPath: exportPath,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/queue", s.handleQueue)
	mux.HandleFunc("/api/v1/counts", s.handleCounts)
	mux.HandleFunc("/api/v1/sync", s.handleSync)
	mux.HandleFunc("/api/v1/retry", s.handleRetry)
	mux.HandleFunc("/api/v1/resolve", s.handleResolve)
	mux.HandleFunc("/api/v1/export", s.handleExport)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	auth := newAuth(cfg)
	handler := s.loggingMiddleware(auth.wrap(mux))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("admin API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" {
		writeJSON(w, http.StatusOK, s.queue.ByStatus(status))
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Queue())
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"pending": s.queue.PendingCount(),
		"failed":  s.queue.FailedCount(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result := s.engine.Sync(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result := s.engine.RetryFailed(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req syncer.ResolveRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ActionID == "" || req.Resolution == "" {
		writeError(w, http.StatusBadRequest, "action_id and resolution are required")
		return
	}

	resolved := s.engine.Resolve(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string]bool{"resolved": resolved})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := export.WriteQueueReport(s.exportPath, s.queue.Queue(), s.logger)
	if err != nil {
		s.logger.Error().Err(err).Msg("queue export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.IncAdminRequest(r.URL.Path)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("admin request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
