package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus instruments shared across the
// orchestration core. Constructed once at startup and registered on a
// single registry so tests can use isolated registries.
type Collectors struct {
	RequestsTotal   *prometheus.CounterVec   // {backend, status}
	RequestDuration *prometheus.HistogramVec // {backend}
	ToolCallsTotal  *prometheus.CounterVec   // {tool, status}
	CacheOpsTotal   *prometheus.CounterVec   // {cache, result}
}

// NewCollectors creates and registers the instruments on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_requests_total",
				Help: "Total orchestration requests by backend and outcome",
			},
			[]string{"backend", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_request_duration_seconds",
				Help:    "End-to-end orchestration latency by backend",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90, 120},
			},
			[]string{"backend"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tool_calls_total",
				Help: "Total tool executions by tool and outcome",
			},
			[]string{"tool", "status"},
		),
		CacheOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_ops_total",
				Help: "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
	}

	reg.MustRegister(c.RequestsTotal, c.RequestDuration, c.ToolCallsTotal, c.CacheOpsTotal)
	return c
}

// statusLabel converts a success flag to the label value used across
// all instruments.
func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// ObserveRequest records one orchestration request on the Prometheus side.
func (c *Collectors) ObserveRequest(backend string, success bool, seconds float64) {
	c.RequestsTotal.WithLabelValues(backend, statusLabel(success)).Inc()
	c.RequestDuration.WithLabelValues(backend).Observe(seconds)
}

// ObserveToolCall records one tool execution.
func (c *Collectors) ObserveToolCall(tool string, success bool) {
	c.ToolCallsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
}

// ObserveCacheOp records one cache lookup result ("hit" or "miss").
func (c *Collectors) ObserveCacheOp(cacheName, result string) {
	c.CacheOpsTotal.WithLabelValues(cacheName, result).Inc()
}
