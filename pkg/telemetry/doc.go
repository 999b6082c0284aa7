// Package telemetry provides the proxy's observability surface: structured
// logging and Prometheus metrics.
//
// # Components
//
//   - logging: structured logging via log/slog, request-scoped fields
//     (request ID, model, provider) carried in context.Context
//   - metrics: Prometheus counters/histograms for requests, errors, and
//     latency per provider and model, served over GET /metrics
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
//	m := metrics.New(prometheus.NewRegistry())
//	mux.Handle("GET /metrics", m.Handler())
//
// Tracing and PII redaction are not implemented; logs are plain structured
// fields and callers are responsible for not logging request bodies.
package telemetry
