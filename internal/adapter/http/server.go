// Package http exposes the ingestion, query, and operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drivewatch/sensor-hub/internal/domain"
)

// Ingestor accepts candidate readings into the record store.
type Ingestor interface {
	Ingest(ctx context.Context, payload domain.Payload) (domain.Reading, error)
}

// SnapshotSource provides the accepted-reading sequence for queries.
type SnapshotSource interface {
	Snapshot() []domain.Reading
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the sensor API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	ingestor   Ingestor
	snapshots  SnapshotSource
	logger     *slog.Logger
}

// NewServer wires all routes. push handles the websocket subscription
// endpoint; staticDir holds the dashboard page served at the root.
func NewServer(addr string, ingestor Ingestor, snapshots SnapshotSource, ready ReadinessChecker, push http.Handler, staticDir string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ingestor:  ingestor,
		snapshots: snapshots,
		logger:    logger,
	}

	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("GET /api/sensor", s.handleHistogram)
	mux.HandleFunc("POST /api/sensor", s.handleIngest)
	mux.Handle("GET /ws", push)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	})
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Dates(s.snapshots.Snapshot()))
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, domain.HistogramForDate(s.snapshots.Snapshot(), date))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload domain.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.ingestor.Ingest(r.Context(), payload); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("reading ingestion failed", "error", err)
		http.Error(w, "failed to persist reading", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("reading received and saved")) //nolint:errcheck
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// withCORS allows any origin; device firmware and the dashboard are served
// from hosts the hub does not control.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
