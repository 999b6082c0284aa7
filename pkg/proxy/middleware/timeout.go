package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

// TimeoutMiddleware enforces a per-request deadline using
// context.WithTimeout. This is a safety net on top of each upstream
// call's own provider-configured timeout (§5); it should wrap only
// non-streaming routes, since a streamed response may legitimately run
// longer than any single upstream call while still making progress.
func TimeoutMiddleware(timeout time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(w, r.WithContext(ctx))
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					logger.ErrorContext(r.Context(), "request timeout",
						"request_id", GetRequestID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout.String(),
					)
					claude.WriteError(w, r, logger, &providers.Error{
						Kind:    providers.KindTimeout,
						Message: "the request took too long to complete",
					})
				}
			}
		})
	}
}
