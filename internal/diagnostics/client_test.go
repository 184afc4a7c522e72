package diagnostics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCallGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/tools/system_health" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "all services healthy"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, slog.Default())
	got, err := c.SystemHealth(context.Background())
	if err != nil {
		t.Fatalf("SystemHealth failed: %v", err)
	}
	if got != "all services healthy" {
		t.Errorf("result = %q", got)
	}
}

func TestCallPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/tools/service_restart" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["service_name"] != "api-gateway" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "restarted api-gateway"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, slog.Default())
	got, err := c.RestartService(context.Background(), "api-gateway")
	if err != nil {
		t.Fatalf("RestartService failed: %v", err)
	}
	if got != "restarted api-gateway" {
		t.Errorf("result = %q", got)
	}
}

func TestCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, slog.Default())
	if _, err := c.SystemHealth(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestCallUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, slog.Default())
	if _, err := c.SystemHealth(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}
