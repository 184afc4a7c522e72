package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/llm"
	"github.com/wardenlabs/warden/internal/tools"
)

// scriptedClient replays canned responses in order; after the script
// runs out it repeats the last entry.
type scriptedClient struct {
	responses []string
	err       error
	delay     time.Duration
	calls     atomic.Int64
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, stop []string) (*llm.ChatResponse, error) {
	n := int(c.calls.Add(1)) - 1
	if c.err != nil {
		return nil, c.err
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n >= len(c.responses) {
		n = len(c.responses) - 1
	}
	return &llm.ChatResponse{Content: c.responses[n], InputTokens: 10, OutputTokens: 5}, nil
}

func (c *scriptedClient) Ping(ctx context.Context) error { return nil }

func testRegistry(t *testing.T, calls *atomic.Int64) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(slog.Default(), nil)
	r.Register(&tools.Tool{
		Name:        "system_health",
		Description: "check health",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if calls != nil {
				calls.Add(1)
			}
			return "CPU 40%, all services running", nil
		},
	})
	return r
}

func TestRunImmediateFinalAnswer(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"Thought: Nothing to do\nFinal Answer: System is healthy.",
	}}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "check everything")
	if !res.Success {
		t.Fatalf("Success = false, stop reason %q", res.StopReason)
	}
	if res.FinalText != "System is healthy." {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if res.Iterations != 1 || len(res.Steps) != 0 {
		t.Errorf("iterations = %d, steps = %d, want 1 and 0", res.Iterations, len(res.Steps))
	}
	if res.StopReason != StopFinalAnswer {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if res.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", res.TotalTokens)
	}
}

func TestRunToolThenAnswer(t *testing.T) {
	var toolCalls atomic.Int64
	client := &scriptedClient{responses: []string{
		"Thought: Check first\nAction: system_health\nAction Input: {}",
		"Thought: Looks good\nFinal Answer: CPU is at 40%, no action needed.",
	}}
	loop := New(client, testRegistry(t, &toolCalls), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "how is the system doing")
	if !res.Success {
		t.Fatalf("Success = false: %v", res.Err)
	}
	if toolCalls.Load() != 1 {
		t.Errorf("tool ran %d times, want 1", toolCalls.Load())
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
	step := res.Steps[0]
	if step.Action != "system_health" || !strings.Contains(step.Observation, "CPU 40%") {
		t.Errorf("step = %+v", step)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
}

func TestRunUnknownToolRecovers(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"Thought: try this\nAction: reboot_datacenter\nAction Input: {}",
		"Thought: that tool does not exist\nFinal Answer: Used available tools only.",
	}}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "fix it")
	if !res.Success {
		t.Fatalf("Success = false, stop reason %q", res.StopReason)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
	if !strings.Contains(res.Steps[0].Observation, "Error:") || !strings.Contains(res.Steps[0].Observation, "unknown tool") {
		t.Errorf("observation = %q, want tool error folded in", res.Steps[0].Observation)
	}
}

func TestRunParseErrorRecovers(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"I think the system is probably fine.",
		"Thought: use the format\nFinal Answer: Done.",
	}}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "check")
	if !res.Success {
		t.Fatalf("Success = false, stop reason %q", res.StopReason)
	}
	if len(res.Steps) != 1 || !strings.Contains(res.Steps[0].Observation, "could not parse") {
		t.Errorf("steps = %+v", res.Steps)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
}

func TestRunIterationLimit(t *testing.T) {
	// The model never produces a final answer; the loop must stop at
	// the cap with the sentinel text and a full transcript.
	client := &scriptedClient{responses: []string{
		"Thought: checking again\nAction: system_health\nAction Input: {}",
	}}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "never finish")
	if res.Success {
		t.Fatal("Success = true for a force-stopped run")
	}
	if res.StopReason != StopIterationLimit {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if res.FinalText != "Agent stopped: maximum iterations reached" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if res.Iterations != 5 || len(res.Steps) != 5 {
		t.Errorf("iterations = %d, steps = %d, want 5 and 5", res.Iterations, len(res.Steps))
	}
	if res.Err != nil {
		t.Errorf("Err = %v, forced stops are not errors", res.Err)
	}
}

func TestRunTimeout(t *testing.T) {
	client := &scriptedClient{
		responses: []string{"Thought: slow\nAction: system_health\nAction Input: {}"},
		delay:     200 * time.Millisecond,
	}
	loop := New(client, testRegistry(t, nil), 50, 80*time.Millisecond, slog.Default())

	start := time.Now()
	res := loop.Run(context.Background(), "slow task")
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("Success = true for a timed-out run")
	}
	if res.StopReason != StopTimeout {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if res.FinalText != "Agent stopped: timeout exceeded" {
		t.Errorf("FinalText = %q", res.FinalText)
	}
	if elapsed > 2*time.Second {
		t.Errorf("run took %v, deadline did not interrupt the backend call", elapsed)
	}
}

func TestRunTimeoutPrecedenceOverCap(t *testing.T) {
	// Deadline expires during the final permitted iteration; the stop
	// reason must report the timeout, not the iteration cap.
	client := &scriptedClient{
		responses: []string{"Thought: again\nAction: system_health\nAction Input: {}"},
		delay:     60 * time.Millisecond,
	}
	loop := New(client, testRegistry(t, nil), 1, 30*time.Millisecond, slog.Default())

	res := loop.Run(context.Background(), "task")
	if res.StopReason != StopTimeout {
		t.Errorf("StopReason = %q, want timeout to take precedence", res.StopReason)
	}
}

func TestRunBackendError(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "task")
	if res.Success {
		t.Fatal("Success = true after backend failure")
	}
	if res.StopReason != StopBackendError {
		t.Errorf("StopReason = %q", res.StopReason)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "connection refused") {
		t.Errorf("Err = %v, want the backend error preserved", res.Err)
	}
}

func TestRunTranscriptChronological(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"Thought: one\nAction: system_health\nAction Input: {}",
		"Thought: two\nAction: system_health\nAction Input: {}",
		"Thought: done\nFinal Answer: ok",
	}}
	loop := New(client, testRegistry(t, nil), 5, time.Minute, slog.Default())

	res := loop.Run(context.Background(), "task")
	if len(res.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(res.Steps))
	}
	if res.Steps[0].Thought != "one" || res.Steps[1].Thought != "two" {
		t.Errorf("transcript out of order: %+v", res.Steps)
	}
	if res.Steps[1].Timestamp.Before(res.Steps[0].Timestamp) {
		t.Error("timestamps not monotonic")
	}
}

func TestRenderScratchpad(t *testing.T) {
	steps := []Step{
		{Thought: "check", Action: "system_health", ActionInput: map[string]any{}, Observation: "all good"},
		{Observation: "Error: could not parse response"},
	}
	got := renderScratchpad(steps)
	for _, want := range []string{"Thought: check", "Action: system_health", "Action Input: {}", "Observation: all good", "Observation: Error:"} {
		if !strings.Contains(got, want) {
			t.Errorf("scratchpad missing %q:\n%s", want, got)
		}
	}
}
