package tools

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/cache"
)

func testTool(name string, calls *atomic.Int64) *Tool {
	return &Tool{
		Name:        name,
		Description: "test tool",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			calls.Add(1)
			return "result", nil
		},
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(slog.Default(), nil)
	_, err := r.Execute(context.Background(), "nope", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("err = %v, want unknown tool", err)
	}
}

func TestExecuteValidation(t *testing.T) {
	r := NewRegistry(slog.Default(), nil)
	r.Register(&Tool{
		Name: "service_logs",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"service_name": map[string]any{"type": "string"},
				"lines":        map[string]any{"type": "integer", "minimum": 1, "maximum": 1000},
			},
			"required": []string{"service_name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{
			name: "valid",
			args: map[string]any{"service_name": "api-gateway", "lines": float64(50)},
		},
		{
			name:    "missing required",
			args:    map[string]any{"lines": float64(50)},
			wantErr: "service_name is required",
		},
		{
			name:    "wrong type",
			args:    map[string]any{"service_name": float64(7)},
			wantErr: "must be a string",
		},
		{
			name:    "below minimum",
			args:    map[string]any{"service_name": "x", "lines": float64(0)},
			wantErr: ">= 1",
		},
		{
			name:    "above maximum",
			args:    map[string]any{"service_name": "x", "lines": float64(5000)},
			wantErr: "<= 1000",
		},
		{
			name:    "non-integer",
			args:    map[string]any{"service_name": "x", "lines": float64(1.5)},
			wantErr: "must be an integer",
		},
		{
			name:    "undeclared argument",
			args:    map[string]any{"service_name": "x", "bogus": "y"},
			wantErr: "unexpected argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), "service_logs", tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Execute failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExecuteCachedDeduplicates(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry(slog.Default(), nil)

	tool := testTool("system_health", &calls)
	tool.Cache = cache.New("system_health", time.Minute, slog.Default())
	r.Register(tool)

	for i := 0; i < 5; i++ {
		got, err := r.Execute(context.Background(), "system_health", nil)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if got != "result" {
			t.Errorf("result = %q", got)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("handler ran %d times within TTL, want 1", n)
	}
}

func TestExecuteConcurrentCachedSingleInvocation(t *testing.T) {
	// First populate the cache, then hammer it concurrently: the
	// external call count must stay at 1 within the TTL window.
	var calls atomic.Int64
	r := NewRegistry(slog.Default(), nil)

	tool := testTool("system_health", &calls)
	tool.Cache = cache.New("system_health", time.Minute, slog.Default())
	r.Register(tool)

	if _, err := r.Execute(context.Background(), "system_health", nil); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Execute(context.Background(), "system_health", nil)
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("external tool invoked %d times, want exactly 1", n)
	}
}

func TestExecuteUncachedAlwaysRuns(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry(slog.Default(), nil)
	r.Register(testTool("service_restart_probe", &calls))

	for i := 0; i < 3; i++ {
		r.Execute(context.Background(), "service_restart_probe", nil)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("uncached handler ran %d times, want 3", n)
	}
}

func TestExecuteErrorNotCached(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry(slog.Default(), nil)
	r.Register(&Tool{
		Name:       "flaky",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if calls.Add(1) == 1 {
				return "", errors.New("transient failure")
			}
			return "recovered", nil
		},
		Cache: cache.New("flaky", time.Minute, slog.Default()),
	})

	if _, err := r.Execute(context.Background(), "flaky", nil); err == nil {
		t.Fatal("first call should fail")
	}
	got, err := r.Execute(context.Background(), "flaky", nil)
	if err != nil || got != "recovered" {
		t.Fatalf("second call = (%q, %v), failed result must not be cached", got, err)
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := cacheKey("service_logs", map[string]any{"service_name": "api", "lines": 50})
	b := cacheKey("service_logs", map[string]any{"lines": 50, "service_name": "api"})
	if a != b {
		t.Errorf("keys differ for identical args: %q vs %q", a, b)
	}
	if cacheKey("system_health", nil) != "system_health" {
		t.Error("no-arg key should be the bare tool name")
	}
}

func TestNamesAndDescribe(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry(slog.Default(), nil)
	r.Register(testTool("beta", &calls))
	r.Register(testTool("alpha", &calls))

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Names = %v, want sorted [alpha beta]", names)
	}

	desc := r.Describe()
	if !strings.Contains(desc, "alpha: test tool") || !strings.Contains(desc, "beta: test tool") {
		t.Errorf("Describe = %q", desc)
	}
}
