// Package orchestrator coordinates a full request: backend selection,
// the agent run, result shaping, and metrics, feedback, and run log
// bookkeeping.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wardenlabs/warden/internal/agent"
	"github.com/wardenlabs/warden/internal/feedback"
	"github.com/wardenlabs/warden/internal/metrics"
	"github.com/wardenlabs/warden/internal/router"
	"github.com/wardenlabs/warden/internal/runlog"
	"github.com/wardenlabs/warden/internal/tools"
	"github.com/wardenlabs/warden/internal/workflows"
)

// maxToolResult bounds tool output echoed in API responses.
const maxToolResult = 200

// ToolCall is one tool invocation as reported in a RepairResult.
type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Success   bool           `json:"success"`
	Result    string         `json:"result"`
}

// RepairResult is the outcome of one repair workflow.
type RepairResult struct {
	Success           bool            `json:"success"`
	ActionsTaken      []string        `json:"actions_taken"`
	ServicesRestarted []string        `json:"services_restarted"`
	FinalStatus       string          `json:"final_status"`
	BackendUsed       string          `json:"backend_used"`
	ModelUsed         string          `json:"model_used"`
	LatencySeconds    float64         `json:"latency_seconds"`
	ToolCalls         []ToolCall      `json:"tool_calls"`
	Feedback          *feedback.Event `json:"feedback,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}

// ChatResult is the outcome of one conversational request.
type ChatResult struct {
	Response       string          `json:"response"`
	BackendUsed    string          `json:"backend_used"`
	ModelUsed      string          `json:"model_used"`
	LatencySeconds float64         `json:"latency_seconds"`
	Feedback       *feedback.Event `json:"feedback,omitempty"`
}

// Orchestrator runs repair and chat workflows against the routed
// backends. The run log store may be nil when history is disabled.
type Orchestrator struct {
	router     *router.Router
	feedback   *feedback.Generator
	collectors *metrics.Collectors
	runs       *runlog.Store
	logger     *slog.Logger
	started    time.Time
}

// New builds the orchestrator. Every registered tool must have an
// action description, so a newly added tool cannot silently fall
// through to a generic summary in repair results.
func New(r *router.Router, registry *tools.Registry, fb *feedback.Generator, collectors *metrics.Collectors, runs *runlog.Store, logger *slog.Logger) (*Orchestrator, error) {
	for _, name := range registry.Names() {
		if _, ok := describeAction(name, nil); !ok {
			return nil, fmt.Errorf("no action description for tool %q", name)
		}
	}
	return &Orchestrator{
		router:     r,
		feedback:   fb,
		collectors: collectors,
		runs:       runs,
		logger:     logger,
		started:    time.Now(),
	}, nil
}

// Uptime reports how long the orchestrator has been running.
func (o *Orchestrator) Uptime() time.Duration {
	return time.Since(o.started)
}

// Router exposes the backend router for status reporting.
func (o *Orchestrator) Router() *router.Router {
	return o.router
}

// Runs exposes the run history store; nil when disabled.
func (o *Orchestrator) Runs() *runlog.Store {
	return o.runs
}

// RunRepair executes a repair workflow. workflow names a template and
// overrides deterministic; both empty falls through to the open-ended
// repair task.
func (o *Orchestrator) RunRepair(ctx context.Context, backendID, workflow string, deterministic bool) (*RepairResult, error) {
	task, err := workflows.ResolveTask(workflow, deterministic)
	if err != nil {
		return nil, err
	}

	o.logger.Info("repair starting", "backend", backendID, "workflow", workflow, "deterministic", deterministic)

	res, b := o.router.Invoke(ctx, backendID, task)
	ev := o.feedback.Rate(res.Success, res.Elapsed, countToolCalls(res.Steps), errText(res))
	o.record(ctx, "repair", b, task, res, ev)

	out := &RepairResult{
		Success:        res.Success,
		FinalStatus:    res.FinalText,
		BackendUsed:    b.ID,
		ModelUsed:      b.Name,
		LatencySeconds: res.Elapsed.Seconds(),
		Feedback:       &ev,
		Timestamp:      time.Now(),
	}

	for _, step := range res.Steps {
		if step.Action == "" {
			continue
		}
		toolOK := !strings.HasPrefix(step.Observation, "Error:")
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ToolName:  step.Action,
			Arguments: step.ActionInput,
			Success:   toolOK,
			Result:    truncateResult(step.Observation),
		})
		desc, ok := describeAction(step.Action, step.ActionInput)
		if !ok {
			desc = fmt.Sprintf("Executed %s", step.Action)
		}
		out.ActionsTaken = append(out.ActionsTaken, desc)
		if strings.Contains(strings.ToLower(step.Action), "restart") {
			out.ServicesRestarted = append(out.ServicesRestarted, serviceArg(step.ActionInput))
		}
	}
	if len(out.ActionsTaken) == 0 {
		out.ActionsTaken = []string{"No actions needed"}
	}

	o.logger.Info("repair complete", "backend", b.ID, "success", res.Success,
		"latency", res.Elapsed, "tools", len(out.ToolCalls), "stop_reason", res.StopReason)
	return out, nil
}

// RunChat executes a conversational request with full tool access.
func (o *Orchestrator) RunChat(ctx context.Context, backendID, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	o.logger.Info("chat starting", "backend", backendID, "message", truncateResult(message))

	res, b := o.router.Invoke(ctx, backendID, message)
	ev := o.feedback.Rate(res.Success, res.Elapsed, countToolCalls(res.Steps), errText(res))
	o.record(ctx, "chat", b, message, res, ev)

	if res.Err != nil {
		return nil, fmt.Errorf("chat failed: %w", res.Err)
	}

	return &ChatResult{
		Response:       res.FinalText,
		BackendUsed:    b.ID,
		ModelUsed:      b.Name,
		LatencySeconds: res.Elapsed.Seconds(),
		Feedback:       &ev,
	}, nil
}

// record updates the per-backend tracker, Prometheus collectors, and
// the run log. Bookkeeping failures are logged, never surfaced.
func (o *Orchestrator) record(ctx context.Context, kind string, b *router.Backend, task string, res *agent.Result, ev feedback.Event) {
	b.Tracker.Record(res.Success, res.Elapsed, res.TotalTokens)
	if o.collectors != nil {
		o.collectors.ObserveRequest(b.ID, res.Success, res.Elapsed.Seconds())
	}
	o.logger.Debug("feedback", "rating", ev.Rating, "category", ev.Category, "message", ev.Message)
	if o.runs == nil {
		return
	}

	rec := runlog.Record{
		Kind:             kind,
		Backend:          b.ID,
		Model:            b.Model,
		Task:             truncateResult(task),
		Success:          res.Success,
		StopReason:       res.StopReason,
		Iterations:       res.Iterations,
		ToolCalls:        countToolCalls(res.Steps),
		LatencySeconds:   res.Elapsed.Seconds(),
		TotalTokens:      res.TotalTokens,
		FinalStatus:      truncateResult(res.FinalText),
		FeedbackRating:   ev.Rating,
		FeedbackCategory: ev.Category,
	}
	if err := o.runs.Append(ctx, rec); err != nil {
		o.logger.Warn("run log append failed", "error", err)
	}
}

func errText(res *agent.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if !res.Success {
		return res.FinalText
	}
	return ""
}

func countToolCalls(steps []agent.Step) int {
	n := 0
	for _, s := range steps {
		if s.Action != "" {
			n++
		}
	}
	return n
}

// actionDescriptions maps each tool name to its summary template.
// Keyed by exact name; the constructor verifies the map covers every
// registered tool, so only model-hallucinated tool names miss.
var actionDescriptions = map[string]func(args map[string]any) string{
	"system_health": func(map[string]any) string { return "Checked system health" },
	"database_status": func(map[string]any) string { return "Checked database status" },
	"service_restart": func(args map[string]any) string {
		return fmt.Sprintf("Restarted %s", serviceArg(args))
	},
	"service_logs": func(args map[string]any) string {
		return fmt.Sprintf("Retrieved logs from %s", serviceArg(args))
	},
	"service_diagnostics": func(args map[string]any) string {
		return fmt.Sprintf("Ran diagnostics on %s", serviceArg(args))
	},
	"service_config_update": func(map[string]any) string { return "Updated service configuration" },
}

// describeAction renders the summary for one tool invocation. The
// second return reports whether the tool has a registered description.
func describeAction(tool string, args map[string]any) (string, bool) {
	describe, ok := actionDescriptions[tool]
	if !ok {
		return "", false
	}
	return describe(args), true
}

func serviceArg(args map[string]any) string {
	if s, ok := args["service_name"].(string); ok && s != "" {
		return s
	}
	return "service"
}

// truncateResult cuts s to maxToolResult bytes on a rune boundary so
// multi-byte characters never split into invalid UTF-8.
func truncateResult(s string) string {
	if s == "" || len(s) <= maxToolResult {
		return s
	}
	cut := maxToolResult
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
