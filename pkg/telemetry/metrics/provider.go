package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ccproxy"

var durationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics tracks the Provider Manager's runtime state: provider health,
// latency, error, and request counts, plus fallback/circuit-breaker
// activity. One Metrics owns one registry for the process lifetime.
type Metrics struct {
	registry *prometheus.Registry

	health               *prometheus.GaugeVec
	latency              *prometheus.HistogramVec
	errors               *prometheus.CounterVec
	requests             *prometheus.CounterVec
	fallbackTotal        *prometheus.CounterVec
	circuitBreakerState  *prometheus.GaugeVec
}

// New creates a Metrics instance and registers its collectors with reg.
// Pass prometheus.NewRegistry() for an isolated registry (tests) or
// prometheus.DefaultRegisterer's registry in production.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_health",
			Help:      "Provider health status (1=healthy, 0=unhealthy/circuit_open/disabled)",
		}, []string{"provider"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Upstream completion call latency in seconds",
			Buckets:   durationBuckets,
		}, []string{"provider", "model"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total upstream errors by kind",
		}, []string{"provider", "kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total completion requests sent to each provider",
		}, []string{"provider", "model"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Total fallback transitions by kind (rotate_model, escalate_provider)",
		}, []string{"kind"}),
		circuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per provider (0=closed, 1=open)",
		}, []string{"provider"}),
	}

	reg.MustRegister(m.health, m.latency, m.errors, m.requests, m.fallbackTotal, m.circuitBreakerState)
	return m
}

// UpdateHealth sets the health gauge for provider (1=healthy, 0=not).
func (m *Metrics) UpdateHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.health.WithLabelValues(provider).Set(v)
}

// RecordLatency observes one completion call's latency.
func (m *Metrics) RecordLatency(provider, model string, seconds float64) {
	m.latency.WithLabelValues(provider, model).Observe(seconds)
}

// RecordError increments the error counter for provider/kind.
func (m *Metrics) RecordError(provider, kind string) {
	m.errors.WithLabelValues(provider, kind).Inc()
}

// RecordRequest increments the request counter for provider/model.
func (m *Metrics) RecordRequest(provider, model string) {
	m.requests.WithLabelValues(provider, model).Inc()
}

// RecordFallback increments the fallback counter for the given transition
// kind ("rotate_model" or "escalate_provider").
func (m *Metrics) RecordFallback(kind string) {
	m.fallbackTotal.WithLabelValues(kind).Inc()
}

// SetCircuitBreakerState records whether provider's circuit is open.
func (m *Metrics) SetCircuitBreakerState(provider string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.circuitBreakerState.WithLabelValues(provider).Set(v)
}

// Handler returns the HTTP handler to mount at GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}
