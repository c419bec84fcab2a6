package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DevRickLin/feishu-realname-sync/internal/logger"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports nil when a dependency is healthy
type CheckFunc func() error

// HTTPServer serves health probes and Prometheus metrics
type HTTPServer struct {
	addr      string
	startTime time.Time
	gatherer  prometheus.Gatherer
	log       *slog.Logger

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHTTPServer creates the health and metrics server
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, log *slog.Logger) *HTTPServer {
	return &HTTPServer{
		addr:      addr,
		startTime: time.Now(),
		gatherer:  gatherer,
		log:       logger.Component(log, "HTTP"),
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a named readiness check
func (s *HTTPServer) RegisterCheck(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Router builds the route table
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleStatus)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("shutdown failed", "error", err)
		return err
	}
	return nil
}

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (s *HTTPServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{Status: "alive"})
}

func (s *HTTPServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := make(map[string]CheckFunc, len(s.checks))
	maps.Copy(checks, s.checks)
	s.mu.RUnlock()

	resp := readinessResponse{Status: "ready", Checks: make(map[string]string)}
	healthy := true
	for name, check := range checks {
		if err := check(); err != nil {
			resp.Checks[name] = "down: " + err.Error()
			healthy = false
		} else {
			resp.Checks[name] = "up"
		}
	}

	if !healthy {
		resp.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
