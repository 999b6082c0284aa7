// Package middleware provides the HTTP middleware chain the proxy wraps
// every route in: request ID propagation, structured request logging,
// CORS, panic recovery, and a per-request timeout.
//
// # Middleware Chain
//
// pkg/server assembles the chain as:
//
//	handler = Recovery(RequestID(Logging(CORS(mux))))
//
// TimeoutMiddleware is NOT part of that outer chain — it is applied
// per-route, at registration time, to every route except
// POST /v1/messages, which may be a long-lived SSE stream that should
// outlive a fixed deadline (see timeout.go).
//
// # Request ID
//
// RequestIDMiddleware assigns each request a UUID v4 if the caller didn't
// send one, stores it in context, and echoes it in X-Request-ID.
//
// # Logging
//
// LoggingMiddleware logs a "request completed" line per request (method,
// path, status, latency_ms, request_id) via log/slog, escalating to
// warn/error on 4xx/5xx.
//
// # CORS
//
// CORSMiddleware answers preflight OPTIONS requests and sets
// Access-Control-* headers from a CORSConfig; DefaultCORSConfig allows any
// origin and the headers the proxy itself uses (Authorization,
// Content-Type, X-Request-ID, x-api-key).
//
// # Recovery
//
// RecoveryMiddleware converts a panic in any handler into a 500 response
// instead of crashing the process; the stack trace is logged, not
// returned to the client.
//
// # Timeout
//
// TimeoutMiddleware races the wrapped handler against context.WithTimeout
// and writes a 504 if the deadline elapses first.
package middleware
