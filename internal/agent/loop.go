// Package agent implements a bounded reason-act-observe loop on top of
// an LLM backend and a tool registry.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wardenlabs/warden/internal/llm"
	"github.com/wardenlabs/warden/internal/tools"
)

// Stop reasons reported in Result.StopReason.
const (
	StopFinalAnswer    = "final_answer"
	StopIterationLimit = "iteration_limit"
	StopTimeout        = "timeout"
	StopBackendError   = "backend_error"
)

const (
	// stopSequence cuts generation before the model hallucinates its
	// own tool output.
	stopSequence = "\nObservation:"

	// maxObservation bounds tool output fed back into the prompt.
	maxObservation = 700
)

// Step is one completed action in the loop transcript. A step with an
// empty Action records a parse failure and its error observation.
type Step struct {
	Thought     string         `json:"thought,omitempty"`
	Action      string         `json:"action,omitempty"`
	ActionInput map[string]any `json:"action_input,omitempty"`
	Observation string         `json:"observation"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (s Step) renderInput() string {
	if len(s.ActionInput) == 0 {
		return "{}"
	}
	b, err := json.Marshal(s.ActionInput)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Result is the outcome of one loop run.
type Result struct {
	Success     bool
	FinalText   string
	Steps       []Step
	Iterations  int
	Elapsed     time.Duration
	TotalTokens int
	StopReason  string
	Err         error
}

// Loop drives the reason-act-observe cycle. One Loop instance is bound
// to one backend client and may run many tasks.
type Loop struct {
	client        llm.Client
	registry      *tools.Registry
	logger        *slog.Logger
	maxIterations int
	timeout       time.Duration
}

// New builds a loop. maxIterations and timeout must be positive; the
// config layer validates them before construction.
func New(client llm.Client, registry *tools.Registry, maxIterations int, timeout time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		client:        client,
		registry:      registry,
		logger:        logger,
		maxIterations: maxIterations,
		timeout:       timeout,
	}
}

// Run executes the loop for one task. It always returns a non-nil
// Result; forced stops (iteration cap, wall clock) yield Success=false
// with a sentinel FinalText, and only backend failures set Err.
func (l *Loop) Run(ctx context.Context, task string) *Result {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	res := &Result{}
	toolListing := l.registry.Describe()
	toolNames := strings.Join(l.registry.Names(), ", ")

	l.logger.Info("agent run starting", "task", truncate(task, 120), "max_iterations", l.maxIterations, "timeout", l.timeout)

	for iter := 1; iter <= l.maxIterations; iter++ {
		if ctx.Err() != nil {
			return l.finishForced(res, StopTimeout, start)
		}
		res.Iterations = iter

		system, user := buildMessages(toolListing, toolNames, task, renderScratchpad(res.Steps))
		resp, err := l.client.Chat(ctx, []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		}, []string{stopSequence})
		if err != nil {
			// A deadline hit mid-request is a timeout stop, not a
			// backend failure.
			if ctx.Err() != nil {
				return l.finishForced(res, StopTimeout, start)
			}
			res.Success = false
			res.StopReason = StopBackendError
			res.Err = fmt.Errorf("backend request failed on iteration %d: %w", iter, err)
			res.FinalText = "Agent stopped: backend unreachable"
			res.Elapsed = time.Since(start)
			l.logger.Error("agent run aborted", "iteration", iter, "error", err)
			return res
		}
		res.TotalTokens += resp.TotalTokens()

		parsed, err := parseResponse(resp.Content)
		if err != nil {
			// Recoverable: show the model its formatting mistake and
			// let it try again on the next iteration.
			l.logger.Warn("unparseable model response", "iteration", iter, "error", err)
			res.Steps = append(res.Steps, Step{
				Observation: fmt.Sprintf("Error: could not parse response (%v). Use the Thought/Action/Action Input format.", err),
				Timestamp:   time.Now(),
			})
			continue
		}

		if parsed.IsFinal {
			res.Success = true
			res.FinalText = parsed.FinalAnswer
			res.StopReason = StopFinalAnswer
			res.Elapsed = time.Since(start)
			l.logger.Info("agent run complete", "iterations", iter, "elapsed", res.Elapsed, "tokens", res.TotalTokens)
			return res
		}

		observation := l.execute(ctx, parsed.Action, parsed.ActionInput)
		res.Steps = append(res.Steps, Step{
			Thought:     parsed.Thought,
			Action:      parsed.Action,
			ActionInput: parsed.ActionInput,
			Observation: truncate(observation, maxObservation),
			Timestamp:   time.Now(),
		})
		l.logger.Debug("agent step", "iteration", iter, "action", parsed.Action, "observation", truncate(observation, 120))
	}

	// Cap reached, but a deadline that expired during the last step
	// takes precedence as the stop reason.
	if ctx.Err() != nil {
		return l.finishForced(res, StopTimeout, start)
	}
	return l.finishForced(res, StopIterationLimit, start)
}

// execute runs a tool and folds failures into the observation text so
// the model can react to them instead of the run aborting.
func (l *Loop) execute(ctx context.Context, name string, args map[string]any) string {
	out, err := l.registry.Execute(ctx, name, args)
	if err != nil {
		l.logger.Warn("tool call failed", "tool", name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

func (l *Loop) finishForced(res *Result, reason string, start time.Time) *Result {
	res.Success = false
	res.StopReason = reason
	res.Elapsed = time.Since(start)
	switch reason {
	case StopTimeout:
		res.FinalText = "Agent stopped: timeout exceeded"
	default:
		res.FinalText = "Agent stopped: maximum iterations reached"
	}
	l.logger.Warn("agent run force-stopped", "reason", reason, "iterations", res.Iterations, "elapsed", res.Elapsed)
	return res
}
