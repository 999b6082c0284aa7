// Package metrics exposes the Provider Manager's runtime state as
// Prometheus metrics: per-provider health, latency, error, and request
// counters, plus fallback and circuit-breaker-state gauges, all served
// from a single registry at GET /metrics.
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	m.UpdateHealth("primary", true)
//	m.RecordLatency("primary", "gpt-4o", 0.42)
//	http.Handle("/metrics", m.Handler())
package metrics
