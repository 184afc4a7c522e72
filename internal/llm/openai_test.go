package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChat(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "mistral:7b-instruct",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "Final Answer: all healthy"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 8},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "mistral:7b-instruct", 0.1, 2048, slog.Default())

	resp, err := c.Chat(context.Background(), llmMessages(), []string{"\nObservation:"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Final Answer: all healthy" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.InputTokens != 120 || resp.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d, want 120/8", resp.InputTokens, resp.OutputTokens)
	}
	if resp.TotalTokens() != 128 {
		t.Errorf("total tokens = %d, want 128", resp.TotalTokens())
	}

	if gotReq.Model != "mistral:7b-instruct" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.Temperature != 0.1 {
		t.Errorf("request temperature = %v, want 0.1", gotReq.Temperature)
	}
	if gotReq.MaxTokens != 2048 {
		t.Errorf("request max_tokens = %d, want 2048", gotReq.MaxTokens)
	}
	if len(gotReq.Stop) != 1 || gotReq.Stop[0] != "\nObservation:" {
		t.Errorf("request stop = %v", gotReq.Stop)
	}
}

func llmMessages() []Message {
	return []Message{{Role: "user", Content: "check system health"}}
}

func TestChatBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "m", 0, 0, slog.Default())
	_, err := c.Chat(context.Background(), llmMessages(), nil)
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "m", 0, 0, slog.Default())
	_, err := c.Chat(context.Background(), llmMessages(), nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate a hung backend. Drain the body first so the server
		// starts its background read and can observe the client
		// disconnect; otherwise r.Context() is never cancelled and
		// srv.Close blocks forever.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "m", 0, 0, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Chat(ctx, llmMessages(), nil)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Chat did not honor context deadline, took %v", elapsed)
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q, want /v1/models", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "m", 0, 0, slog.Default())
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
