// Package diagnostics is the HTTP client for the external diagnostics
// server that hosts the system/database tool implementations. The tool
// content is opaque to the orchestration core; only the wire interface
// matters here: GET/POST /tools/<name> returning {"result": "..."}.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wardenlabs/warden/internal/httpkit"
)

// Client calls diagnostic tools on the external server.
type Client struct {
	baseURL    string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewClient creates a diagnostics client. timeout bounds each
// individual tool call; the agent loop's own ceiling still applies
// through the request context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		logger:     logger,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
	}
}

// toolResponse is the server's envelope for every tool result.
type toolResponse struct {
	Result string `json:"result"`
}

// Call invokes a tool endpoint. A nil body sends a GET; otherwise the
// body is POSTed as JSON. Failures return an error so the caller can
// turn them into observations.
func (c *Client) Call(ctx context.Context, tool string, body map[string]any) (string, error) {
	path := c.baseURL + "/tools/" + tool
	var req *http.Request
	var err error

	if body == nil {
		req, err = http.NewRequestWithContext(ctx, "GET", path, nil)
	} else {
		var payload []byte
		payload, err = json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("marshal tool arguments: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, "POST", path, bytes.NewReader(payload))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug("diagnostics call", "tool", tool, "method", req.Method)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("diagnostics server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("diagnostics server error %d: %s", resp.StatusCode, string(snippet))
	}

	var tr toolResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode tool result: %w", err)
	}
	return tr.Result, nil
}

// SystemHealth checks overall system health.
func (c *Client) SystemHealth(ctx context.Context) (string, error) {
	return c.Call(ctx, "system_health", nil)
}

// DatabaseStatus checks database health and performance.
func (c *Client) DatabaseStatus(ctx context.Context) (string, error) {
	return c.Call(ctx, "database_status", nil)
}

// RestartService restarts the named service.
func (c *Client) RestartService(ctx context.Context, serviceName string) (string, error) {
	return c.Call(ctx, "service_restart", map[string]any{"service_name": serviceName})
}

// ServiceLogs retrieves recent log lines from the named service.
func (c *Client) ServiceLogs(ctx context.Context, serviceName string, lines int) (string, error) {
	return c.Call(ctx, "service_logs", map[string]any{"service_name": serviceName, "lines": lines})
}

// UpdateConfig sets a configuration key on the named service.
func (c *Client) UpdateConfig(ctx context.Context, serviceName, key, value string) (string, error) {
	return c.Call(ctx, "service_config_update", map[string]any{
		"service_name": serviceName, "key": key, "value": value,
	})
}

// RunDiagnostics runs the full diagnostic suite on the named service.
func (c *Client) RunDiagnostics(ctx context.Context, serviceName string) (string, error) {
	return c.Call(ctx, "service_diagnostics", map[string]any{"service_name": serviceName})
}
