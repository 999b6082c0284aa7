package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the HTTP header carrying the request id.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware generates a unique request id for each request and
// adds it to the context and response headers. If the client supplies one
// in X-Request-ID, it is used instead of minting a new one.
//
// This id is the single request_id minted once per inbound request and
// threaded unchanged through the whole fallback lifecycle (§4.6); this
// middleware is where it is born for requests that don't pre-supply one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request id from the context, or "" if unset.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
