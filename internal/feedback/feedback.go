// Package feedback derives a synthetic quality signal from run
// outcomes. It is a demonstration telemetry generator, not a
// correctness oracle: each branch flips a weighted coin so the emitted
// ratings look like real user feedback.
package feedback

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Rating values emitted with each event.
const (
	RatingUp   = "thumbs_up"
	RatingDown = "thumbs_down"
)

// Latency boundaries for the heuristic branches.
const (
	SlowLatency = 60 * time.Second
	FastLatency = 5 * time.Second
)

// Probability that a branch emits a positive rating (or, for the slow
// branch, a negative one). Exposed as named constants so tests and
// dashboards can reference the intended distribution.
const (
	ProbSlowNegative       = 0.80
	ProbFastPositive       = 0.90
	ProbMultiToolPositive  = 0.85
	ProbSingleToolPositive = 0.75
	ProbChatPositive       = 0.70
)

// Event is the derived (rating, category, message) tuple for one run.
// Events are emitted, never stored.
type Event struct {
	Rating   string `json:"rating"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Generator produces feedback events. Seed it explicitly for
// reproducible output in tests.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator with the given seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// roll returns true with probability p.
func (g *Generator) roll(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// Rate produces a feedback event for one completed run. Branches are
// evaluated in fixed order: failure, very slow, very fast, multi-tool,
// single-tool, conversational.
func (g *Generator) Rate(success bool, latency time.Duration, toolCount int, errMsg string) Event {
	if !success {
		if errMsg == "" {
			errMsg = "unknown error"
		}
		if len(errMsg) > 100 {
			errMsg = errMsg[:100]
		}
		return Event{RatingDown, "error", fmt.Sprintf("Request failed: %s", errMsg)}
	}

	if latency > SlowLatency {
		if g.roll(ProbSlowNegative) {
			return Event{RatingDown, "slow_response", fmt.Sprintf("Response took too long (%.0fs)", latency.Seconds())}
		}
		return Event{RatingUp, "accurate", "Slow but accurate response"}
	}

	if latency < FastLatency {
		if g.roll(ProbFastPositive) {
			return Event{RatingUp, "fast", fmt.Sprintf("Quick and helpful response (%.1fs)", latency.Seconds())}
		}
		return Event{RatingDown, "inaccurate", "Response seemed too brief"}
	}

	if toolCount >= 2 {
		if g.roll(ProbMultiToolPositive) {
			return Event{RatingUp, "thorough", fmt.Sprintf("Good diagnostic process with %d tools", toolCount)}
		}
		return Event{RatingDown, "overcomplicated", "Used too many tools unnecessarily"}
	}

	if toolCount == 1 {
		if g.roll(ProbSingleToolPositive) {
			return Event{RatingUp, "helpful", "Helpful response"}
		}
		return Event{RatingDown, "incomplete", "Response lacked detail"}
	}

	if g.roll(ProbChatPositive) {
		return Event{RatingUp, "informative", "Clear explanation"}
	}
	return Event{RatingDown, "unhelpful", "Expected more detailed information"}
}
