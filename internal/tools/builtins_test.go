package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/cache"
	"github.com/wardenlabs/warden/internal/diagnostics"
)

func diagServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"result": "ok: " + r.URL.Path})
	}))
}

func TestBuildRegistryCore(t *testing.T) {
	var hits atomic.Int64
	srv := diagServer(t, &hits)
	defer srv.Close()

	dc := diagnostics.NewClient(srv.URL, time.Second, slog.Default())
	r := BuildRegistry(dc, nil, false, slog.Default(), nil)

	want := []string{"database_status", "service_restart", "system_health"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names = %v, want %v", got, want)
		}
	}
}

func TestBuildRegistryExtended(t *testing.T) {
	var hits atomic.Int64
	srv := diagServer(t, &hits)
	defer srv.Close()

	dc := diagnostics.NewClient(srv.URL, time.Second, slog.Default())
	r := BuildRegistry(dc, nil, true, slog.Default(), nil)

	if len(r.Names()) != 6 {
		t.Fatalf("extended registry has %d tools, want 6", len(r.Names()))
	}

	got, err := r.Execute(context.Background(), "service_diagnostics", map[string]any{"service_name": "api-gateway"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "ok: /tools/service_diagnostics" {
		t.Errorf("result = %q", got)
	}
}

func TestBuiltinCachingOnlyWhereEnabled(t *testing.T) {
	var hits atomic.Int64
	srv := diagServer(t, &hits)
	defer srv.Close()

	dc := diagnostics.NewClient(srv.URL, time.Second, slog.Default())
	caches := map[string]*cache.TTLCache{
		"system_health": cache.New("system_health", time.Minute, slog.Default()),
	}
	r := BuildRegistry(dc, caches, false, slog.Default(), nil)

	// Cached tool: one upstream call for two executions.
	r.Execute(context.Background(), "system_health", nil)
	r.Execute(context.Background(), "system_health", nil)
	if n := hits.Load(); n != 1 {
		t.Errorf("system_health upstream calls = %d, want 1", n)
	}

	// Restart is never cached: every execution goes upstream.
	hits.Store(0)
	args := map[string]any{"service_name": "api-gateway"}
	r.Execute(context.Background(), "service_restart", args)
	r.Execute(context.Background(), "service_restart", args)
	if n := hits.Load(); n != 2 {
		t.Errorf("service_restart upstream calls = %d, want 2", n)
	}
}

func TestBuiltinRestartRequiresServiceName(t *testing.T) {
	dc := diagnostics.NewClient("http://127.0.0.1:1", time.Second, slog.Default())
	r := BuildRegistry(dc, nil, false, slog.Default(), nil)

	_, err := r.Execute(context.Background(), "service_restart", map[string]any{})
	if err == nil {
		t.Fatal("expected validation error for missing service_name")
	}
}
