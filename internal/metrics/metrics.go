// Package metrics holds the gateway's prometheus collectors. Collectors are
// registered on an explicit registry so tests and multiple gateways never
// collide on the default one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "edublin_gateway"

// Call outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
	OutcomeFallback = "fallback"
)

// Breaker states as gauge values.
var stateValues = map[string]float64{
	"closed":             0,
	"half_open":          1,
	"open":               2,
	"permanent_fallback": 3,
}

type Metrics struct {
	Registry *prometheus.Registry

	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	substitutions *prometheus.CounterVec
	breakerState  prometheus.Gauge
	failureCount  prometheus.Gauge
	transitions   *prometheus.CounterVec
}

// New registers the gateway collectors and the Go runtime collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Gateway operations by outcome.",
		}, []string{"op", "outcome"}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of remote calls that were attempted.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 1.5, 2, 5},
		}, []string{"op"}),
		substitutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_substitutions_total",
			Help:      "Results served from fallback data instead of the backend.",
		}, []string{"op"}),
		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "0 closed, 1 half open, 2 open, 3 permanent fallback.",
		}),
		failureCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_failure_count",
			Help:      "Current breaker failure count.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Breaker state changes by target state.",
		}, []string{"to"}),
	}
}

// Call records the outcome of one gateway operation. A zero elapsed
// means no remote call was made.
func (m *Metrics) Call(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	if elapsed > 0 {
		m.callDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) Substituted(op string) {
	if m == nil {
		return
	}
	m.substitutions.WithLabelValues(op).Inc()
}

// Breaker mirrors the breaker snapshot into the gauges.
func (m *Metrics) Breaker(state string, failures int) {
	if m == nil {
		return
	}
	m.breakerState.Set(stateValues[state])
	m.failureCount.Set(float64(failures))
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
