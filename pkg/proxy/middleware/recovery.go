package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"ccproxy/pkg/claude"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a
// 500 in the Claude error envelope shape. It logs the panic with a stack
// trace but never exposes internal details to clients.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					requestID := GetRequestID(r.Context())
					logger.ErrorContext(r.Context(), "panic in handler",
						"error", fmt.Sprint(rec),
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					claude.WriteError(w, r, logger, fmt.Errorf("internal: %v", rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
