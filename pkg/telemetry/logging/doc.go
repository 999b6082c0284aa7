// Package logging wraps log/slog with the request-scoped attributes the
// proxy attaches to every log line: request_id, provider, model, and
// size_class. A Logger is created once at startup from the configured
// level/format; the request-scoped attributes travel in context.Context
// (WithRequestID, WithProvider, ...) and the Logger's level methods add
// whichever are present to each line.
package logging
