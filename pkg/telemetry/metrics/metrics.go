// Package metrics exposes prometheus collectors for the router's decision
// points: attempts by outcome kind, attempt latency, endpoint health and
// reliability, selector decisions, and fan-out activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics tracks router activity.
//
// Metrics:
//   - <ns>_<sub>_attempts_total: call attempts by endpoint and outcome kind
//   - <ns>_<sub>_attempt_latency_seconds: attempt latency by endpoint
//   - <ns>_<sub>_entity_active: entity eligibility (1=eligible, 0=not)
//   - <ns>_<sub>_entity_reliability: entity reliability score (20-100)
//   - <ns>_<sub>_requests_total: facade requests by task and result
//   - <ns>_<sub>_fanout_branches_total: fan-out branches by result
type RouterMetrics struct {
	attempts       *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	entityActive   *prometheus.GaugeVec
	reliability    *prometheus.GaugeVec
	requests       *prometheus.CounterVec
	fanoutBranches *prometheus.CounterVec
}

// New creates and registers the router metrics with the provided registry.
func New(namespace, subsystem string, registry *prometheus.Registry) *RouterMetrics {
	m := &RouterMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Call attempts by endpoint and outcome kind",
			},
			[]string{"endpoint", "kind"},
		),

		attemptLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempt_latency_seconds",
				Help:      "Call attempt latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		entityActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entity_active",
				Help:      "Entity eligibility (1=eligible for selection, 0=blocked or inactive)",
			},
			[]string{"entity", "pool"},
		),

		reliability: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entity_reliability",
				Help:      "Entity reliability score (20-100)",
			},
			[]string{"entity", "pool"},
		),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Facade requests by task tag and result",
			},
			[]string{"task", "result"},
		),

		fanoutBranches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fanout_branches_total",
				Help:      "Fan-out branches by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.attempts,
		m.attemptLatency,
		m.entityActive,
		m.reliability,
		m.requests,
		m.fanoutBranches,
	)

	return m
}

// ObserveAttempt records one executor attempt. RouterMetrics is nil-safe
// so callers need no enabled check.
func (m *RouterMetrics) ObserveAttempt(endpoint, kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(endpoint, kind).Inc()
	m.attemptLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// UpdateEntity records an entity's eligibility and reliability.
func (m *RouterMetrics) UpdateEntity(entity, pool string, eligible bool, reliability float64) {
	if m == nil {
		return
	}
	v := 0.0
	if eligible {
		v = 1.0
	}
	m.entityActive.WithLabelValues(entity, pool).Set(v)
	m.reliability.WithLabelValues(entity, pool).Set(reliability)
}

// ObserveRequest records a facade request result ("ok" or "exhausted").
func (m *RouterMetrics) ObserveRequest(task, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(task, result).Inc()
}

// ObserveFanoutBranch records one fan-out branch result ("ok", "failed",
// or "abandoned").
func (m *RouterMetrics) ObserveFanoutBranch(result string) {
	if m == nil {
		return
	}
	m.fanoutBranches.WithLabelValues(result).Inc()
}
