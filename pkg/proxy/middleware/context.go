package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey stores the unique request ID (§6).
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"
)
