package claude

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ccproxy/pkg/providers"
)

// ErrorEnvelope is the JSON body returned for any failure, per §7:
// {"type":"error","error":{"type":"<kind>","message":"<msg>"}}.
type ErrorEnvelope struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the classified kind and a forwarding-safe message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorEnvelope builds the envelope for a given kind/message pair.
func NewErrorEnvelope(kind providers.Kind, message string) *ErrorEnvelope {
	return &ErrorEnvelope{Type: "error", Error: ErrorDetail{Type: string(kind), Message: message}}
}

// WriteError classifies err to a Kind and HTTP status, logs it, and writes
// the error envelope. Stack traces and internal details never reach the
// client; errors.As against *providers.Error lets this see through any
// wrapping the Fallback Controller performs.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var pErr *providers.Error
	kind := providers.KindInternal
	message := "An internal error occurred."
	if errors.As(err, &pErr) {
		kind = pErr.Kind
		message = pErr.Message
	}

	status := kind.HTTPStatus()
	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed", "kind", kind, "error", err)
	} else {
		logger.WarnContext(r.Context(), "request failed", "kind", kind, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorEnvelope(kind, message))
}
