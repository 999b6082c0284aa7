package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

// APIKeyMiddleware checks the inbound request against a single configured
// key, accepted from either the x-api-key header or an Authorization:
// Bearer ... header (§6). An empty expectedKey disables the check
// entirely, matching "if unset, auth is disabled".
func APIKeyMiddleware(expectedKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if extractAPIKey(r) != expectedKey {
				logger.Warn("rejected request with missing or mismatched API key",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr)
				claude.WriteError(w, r, logger, &providers.Error{Kind: providers.KindAuth, Message: "invalid x-api-key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
