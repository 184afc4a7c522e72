// Package tools defines the operations available to the agent loop.
//
// The registry is built once at startup and read-only afterwards; it
// is shared by both backends' loops. Execution validates arguments
// against each tool's declared schema and consults the tool's result
// cache, when one is attached, before invoking the handler.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/wardenlabs/warden/internal/cache"
	"github.com/wardenlabs/warden/internal/metrics"
)

// Tool represents a callable external operation.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON-schema-shaped map: {"type": "object",
	// "properties": {...}, "required": [...]}.
	Parameters map[string]any
	Handler    func(ctx context.Context, args map[string]any) (string, error)
	// Cache, when non-nil, deduplicates calls within its TTL window.
	// Tools without a cache always execute.
	Cache *cache.TTLCache
}

// Registry holds the available tools.
type Registry struct {
	tools      map[string]*Tool
	logger     *slog.Logger
	collectors *metrics.Collectors
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, collectors *metrics.Collectors) *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		logger:     logger,
		collectors: collectors,
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns all tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a "name: description" listing for the agent prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		fmt.Fprintf(&b, "%s: %s\n", name, r.tools[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// CacheStats returns stats for every tool-attached cache, keyed by
// cache name.
func (r *Registry) CacheStats() map[string]cache.Stats {
	stats := make(map[string]cache.Stats)
	for _, t := range r.tools {
		if t.Cache != nil {
			stats[t.Cache.Name()] = t.Cache.Stats()
		}
	}
	return stats
}

// Execute runs a tool by name. Arguments are validated against the
// tool's schema before the handler runs. The cache, when attached, is
// consulted first; only successful results are stored.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	if err := validateArgs(tool.Parameters, args); err != nil {
		r.observe(name, false)
		return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
	}

	if tool.Cache != nil {
		key := cacheKey(name, args)
		if cached, ok := tool.Cache.Get(key); ok {
			r.observeCache(tool.Cache.Name(), "hit")
			r.observe(name, true)
			return cached, nil
		}
		r.observeCache(tool.Cache.Name(), "miss")

		result, err := tool.Handler(ctx, args)
		if err != nil {
			r.observe(name, false)
			return "", err
		}
		tool.Cache.Set(key, result)
		r.observe(name, true)
		return result, nil
	}

	result, err := tool.Handler(ctx, args)
	r.observe(name, err == nil)
	return result, err
}

func (r *Registry) observe(name string, success bool) {
	if r.collectors != nil {
		r.collectors.ObserveToolCall(name, success)
	}
}

func (r *Registry) observeCache(cacheName, result string) {
	if r.collectors != nil {
		r.collectors.ObserveCacheOp(cacheName, result)
	}
}

// cacheKey builds a stable key from the tool name and its arguments.
// encoding/json sorts map keys, so identical argument sets normalize
// to identical keys.
func cacheKey(name string, args map[string]any) string {
	if len(args) == 0 {
		return name
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return name
	}
	return name + ":" + string(encoded)
}

// validateArgs checks args against a JSON-schema-shaped parameter map:
// required fields must be present, declared types must match, and
// integer bounds (minimum/maximum) are enforced.
func validateArgs(schema, args map[string]any) error {
	if schema == nil {
		return nil
	}

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := args[field]; !present {
				return fmt.Errorf("%s is required", field)
			}
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	for field, value := range args {
		propAny, declared := properties[field]
		if !declared {
			return fmt.Errorf("unexpected argument %q", field)
		}
		prop, ok := propAny.(map[string]any)
		if !ok {
			continue
		}

		switch prop["type"] {
		case "string":
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%s must be a string", field)
			}
		case "boolean":
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("%s must be a boolean", field)
			}
		case "integer":
			// JSON numbers decode as float64.
			n, ok := toFloat(value)
			if !ok || n != float64(int64(n)) {
				return fmt.Errorf("%s must be an integer", field)
			}
			if min, ok := toFloat(prop["minimum"]); ok && n < min {
				return fmt.Errorf("%s must be >= %v", field, min)
			}
			if max, ok := toFloat(prop["maximum"]); ok && n > max {
				return fmt.Errorf("%s must be <= %v", field, max)
			}
		case "number":
			if _, ok := toFloat(value); !ok {
				return fmt.Errorf("%s must be a number", field)
			}
		case "object":
			if _, ok := value.(map[string]any); !ok {
				return fmt.Errorf("%s must be an object", field)
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
