// Package metrics tracks per-backend request counters for A/B
// comparison and exports Prometheus collectors for scraping.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of one backend's counters.
type Snapshot struct {
	ModelName          string  `json:"model_name"`
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	SuccessRate        float64 `json:"success_rate"`
	AvgLatencySeconds  float64 `json:"avg_latency_seconds"`
	TotalTokens        int64   `json:"total_tokens"`
}

// Tracker accumulates rolling counters for one backend. Safe for
// concurrent use; snapshots may be taken while records are in flight.
type Tracker struct {
	modelName string

	mu          sync.Mutex
	total       int64
	succeeded   int64
	failed      int64
	avgLatency  float64 // seconds, online mean
	totalTokens int64
}

// NewTracker creates a tracker for the named model.
func NewTracker(modelName string) *Tracker {
	return &Tracker{modelName: modelName}
}

// Record adds one completed request. The average latency is maintained
// as an incremental mean so no history is stored.
func (t *Tracker) Record(success bool, latency time.Duration, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if success {
		t.succeeded++
	} else {
		t.failed++
	}

	t.avgLatency += (latency.Seconds() - t.avgLatency) / float64(t.total)
	t.totalTokens += int64(tokens)
}

// Snapshot returns a copy of the current counters. Success rate is
// derived on read and is 0 when no requests have been recorded.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rate float64
	if t.total > 0 {
		rate = float64(t.succeeded) / float64(t.total)
	}
	return Snapshot{
		ModelName:          t.modelName,
		TotalRequests:      t.total,
		SuccessfulRequests: t.succeeded,
		FailedRequests:     t.failed,
		SuccessRate:        rate,
		AvgLatencySeconds:  t.avgLatency,
		TotalTokens:        t.totalTokens,
	}
}
