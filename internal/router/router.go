// Package router selects between the two model backends compared in
// A/B fashion.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/wardenlabs/warden/internal/agent"
	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/llm"
	"github.com/wardenlabs/warden/internal/metrics"
	"github.com/wardenlabs/warden/internal/tools"
)

// Backend is one routable model endpoint with its loop and counters.
// Backends are built once at startup and read-only afterwards.
type Backend struct {
	ID      string
	Name    string
	Model   string
	BaseURL string

	Client  llm.Client
	Loop    *agent.Loop
	Tracker *metrics.Tracker
}

// Router holds the fixed backend set and the default choice.
type Router struct {
	backends  map[string]*Backend
	defaultID string
	logger    *slog.Logger
}

// New builds the router from validated configuration. Both backends
// share the tool registry; each gets its own client, loop, and tracker.
func New(cfg *config.Config, registry *tools.Registry, logger *slog.Logger) *Router {
	r := &Router{
		backends:  make(map[string]*Backend, 2),
		defaultID: cfg.Backends.Default,
		logger:    logger,
	}
	for id, bc := range map[string]config.BackendConfig{"a": cfg.Backends.A, "b": cfg.Backends.B} {
		name := bc.Name
		if name == "" {
			name = bc.Model
		}
		client := llm.NewOpenAIClient(bc.BaseURL, bc.Model, bc.Temperature, bc.MaxTokens, logger.With("backend", id))
		r.backends[id] = &Backend{
			ID:      id,
			Name:    name,
			Model:   bc.Model,
			BaseURL: bc.BaseURL,
			Client:  client,
			Loop:    agent.New(client, registry, cfg.Agent.MaxIterations, cfg.Agent.Timeout(), logger.With("backend", id)),
			Tracker: metrics.NewTracker(name),
		}
	}
	return r
}

// Default returns the configured default backend.
func (r *Router) Default() *Backend {
	return r.backends[r.defaultID]
}

// Select returns the backend with the given id, or an error for an
// unknown id.
func (r *Router) Select(id string) (*Backend, error) {
	b, ok := r.backends[id]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (known: %v)", id, r.IDs())
	}
	return b, nil
}

// Invoke resolves a backend (with default fallback) and runs one agent
// task on it. It returns the loop result and the backend that ran it.
func (r *Router) Invoke(ctx context.Context, id, task string) (*agent.Result, *Backend) {
	b := r.Resolve(id)
	return b.Loop.Run(ctx, task), b
}

// Resolve picks the backend for a request. An empty id means the
// default; an unknown id falls back to the default with a warning
// rather than failing the request.
func (r *Router) Resolve(id string) *Backend {
	if id == "" {
		return r.Default()
	}
	if b, ok := r.backends[id]; ok {
		return b
	}
	r.logger.Warn("unknown backend requested, using default", "requested", id, "default", r.defaultID)
	return r.Default()
}

// IDs returns the backend ids in stable order.
func (r *Router) IDs() []string {
	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Backends returns all backends in stable id order.
func (r *Router) Backends() []*Backend {
	out := make([]*Backend, 0, len(r.backends))
	for _, id := range r.IDs() {
		out = append(out, r.backends[id])
	}
	return out
}

// PingAll probes every backend and reports reachability per id.
func (r *Router) PingAll(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.backends))
	for id, b := range r.backends {
		out[id] = b.Client.Ping(ctx)
	}
	return out
}
