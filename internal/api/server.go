// Package api implements the HTTP surface: repair and chat endpoints,
// status and cache introspection, run history, Prometheus metrics, and
// a websocket status feed.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/wardenlabs/warden/internal/buildinfo"
	"github.com/wardenlabs/warden/internal/orchestrator"
	"github.com/wardenlabs/warden/internal/tools"
	"github.com/wardenlabs/warden/internal/workflows"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// errorPayload is the structured error body returned by all endpoints.
type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error, logger *slog.Logger) {
	writeJSON(w, status, errorPayload{Error: err.Error()}, logger)
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	orch     *orchestrator.Orchestrator
	reg      *tools.Registry
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	server   *http.Server
	hub      *statusHub
}

// NewServer creates the API server. gatherer feeds the /metrics
// endpoint and is usually the registry the collectors were registered
// on.
func NewServer(address string, port int, orch *orchestrator.Orchestrator, reg *tools.Registry, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		orch:     orch,
		reg:      reg,
		gatherer: gatherer,
		logger:   logger,
		hub:      newStatusHub(logger),
	}
}

// Handler builds the routing table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	r.HandleFunc("/repair", s.handleRepair).Methods(http.MethodPost)
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/cache/stats", s.handleCacheStats).Methods(http.MethodGet)
	r.HandleFunc("/workflows", s.handleWorkflows).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/ws/status", s.handleStatusSocket)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return c.Handler(s.withLogging(r))
}

// Start begins serving HTTP requests and the websocket status
// broadcaster. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx, statusInterval, s.statusSnapshot)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // repair runs can approach the loop ceiling
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "warden",
		"version": buildinfo.Version,
		"endpoints": map[string]string{
			"repair":    "POST /repair?backend={a|b}&workflow={name}&deterministic={bool}",
			"chat":      "POST /chat (body: {message, backend})",
			"status":    "GET /status",
			"cache":     "GET /cache/stats",
			"workflows": "GET /workflows",
			"runs":      "GET /runs?limit=N",
			"metrics":   "GET /metrics",
			"ws":        "GET /ws/status",
			"health":    "GET /health",
		},
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        "warden",
		"version":        buildinfo.Version,
		"uptime_seconds": s.orch.Uptime().Seconds(),
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info(), s.logger)
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deterministic, _ := strconv.ParseBool(q.Get("deterministic"))

	res, err := s.orch.RunRepair(r.Context(), q.Get("backend"), q.Get("workflow"), deterministic)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, res, s.logger)
}

// chatRequest is the /chat request body.
type chatRequest struct {
	Message string `json:"message"`
	Backend string `json:"backend"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), s.logger)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"), s.logger)
		return
	}

	res, err := s.orch.RunChat(r.Context(), req.Backend, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, res, s.logger)
}

// statusSnapshot assembles the payload shared by /status and the
// websocket feed.
func (s *Server) statusSnapshot() map[string]any {
	backends := map[string]any{}
	for _, b := range s.orch.Router().Backends() {
		backends[b.ID] = b.Tracker.Snapshot()
	}
	return map[string]any{
		"status":         "running",
		"backends":       backends,
		"uptime_seconds": s.orch.Uptime().Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusSnapshot(), s.logger)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.CacheStats(), s.logger)
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows.List(),
	}, s.logger)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.orch.Runs()
	if runs == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run history is disabled"), s.logger)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v), s.logger)
			return
		}
		limit = n
	}

	recent, err := runs.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, s.logger)
		return
	}
	summary, err := runs.SummaryByBackend(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":    recent,
		"summary": summary,
	}, s.logger)
}
