package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wardenlabs/warden/internal/cache"
	"github.com/wardenlabs/warden/internal/diagnostics"
	"github.com/wardenlabs/warden/internal/metrics"
)

// BuildRegistry creates the registry with the diagnostic tool set.
// caches maps cache names (matching tool names) to their instances;
// tools without an entry run uncached. extended additionally registers
// service_logs, service_config_update, and service_diagnostics.
func BuildRegistry(dc *diagnostics.Client, caches map[string]*cache.TTLCache, extended bool, logger *slog.Logger, collectors *metrics.Collectors) *Registry {
	r := NewRegistry(logger, collectors)

	r.Register(&Tool{
		Name:        "system_health",
		Description: "Check system health: service status, CPU/memory/disk usage, network throughput.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return dc.SystemHealth(ctx)
		},
		Cache: caches["system_health"],
	})

	r.Register(&Tool{
		Name:        "database_status",
		Description: "Check database health: connection pool, query performance, cache hit rates, replication lag.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return dc.DatabaseStatus(ctx)
		},
		Cache: caches["database_status"],
	})

	r.Register(&Tool{
		Name:        "service_restart",
		Description: "Restart a service to recover from failures. Args: service_name (string).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_name": map[string]any{
					"type":        "string",
					"description": "Name of the service to restart",
				},
			},
			"required": []string{"service_name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["service_name"].(string)
			if name == "" {
				return "", fmt.Errorf("service_name is required")
			}
			return dc.RestartService(ctx, name)
		},
	})

	if extended {
		registerExtended(r, dc)
	}

	logger.Info("tool registry built", "tools", len(r.tools), "extended", extended)
	return r
}

func registerExtended(r *Registry, dc *diagnostics.Client) {
	r.Register(&Tool{
		Name:        "service_logs",
		Description: "Retrieve recent logs from a service. Args: service_name (string), lines (int, default 50).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_name": map[string]any{
					"type":        "string",
					"description": "Name of the service (e.g., 'api-gateway', 'auth-service')",
				},
				"lines": map[string]any{
					"type":        "integer",
					"description": "Number of log lines to retrieve",
					"minimum":     1,
					"maximum":     1000,
				},
			},
			"required": []string{"service_name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["service_name"].(string)
			lines := 50
			if n, ok := toFloat(args["lines"]); ok {
				lines = int(n)
			}
			return dc.ServiceLogs(ctx, name, lines)
		},
	})

	r.Register(&Tool{
		Name:        "service_config_update",
		Description: "Update service configuration. Args: service_name (string), key (string), value (string). Restart usually required.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_name": map[string]any{"type": "string", "description": "Name of the service"},
				"key":          map[string]any{"type": "string", "description": "Configuration key to update"},
				"value":        map[string]any{"type": "string", "description": "New configuration value"},
			},
			"required": []string{"service_name", "key", "value"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["service_name"].(string)
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			return dc.UpdateConfig(ctx, name, key, value)
		},
	})

	r.Register(&Tool{
		Name:        "service_diagnostics",
		Description: "Run comprehensive diagnostics on a service. Args: service_name (string).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_name": map[string]any{"type": "string", "description": "Name of the service to diagnose"},
			},
			"required": []string{"service_name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, _ := args["service_name"].(string)
			return dc.RunDiagnostics(ctx, name)
		},
	})
}
