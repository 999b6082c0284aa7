package logging

import "context"

// Context keys for the fields the proxy attaches to request-scoped logs.
type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	ProviderKey  contextKey = "provider"
	ModelKey     contextKey = "model"
	SizeClassKey contextKey = "size_class"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context, or "" if unset.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// WithProvider adds the provider name to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// WithModel adds the model name to the context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// WithSizeClass adds the inferred size class to the context.
func WithSizeClass(ctx context.Context, class string) context.Context {
	return context.WithValue(ctx, SizeClassKey, class)
}

// attrsFromContext collects whichever of the above fields are present
// into slog attributes, in a stable order.
func attrsFromContext(ctx context.Context) []any {
	var attrs []any
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		attrs = append(attrs, "request_id", v)
	}
	if v, ok := ctx.Value(ProviderKey).(string); ok && v != "" {
		attrs = append(attrs, "provider", v)
	}
	if v, ok := ctx.Value(ModelKey).(string); ok && v != "" {
		attrs = append(attrs, "model", v)
	}
	if v, ok := ctx.Value(SizeClassKey).(string); ok && v != "" {
		attrs = append(attrs, "size_class", v)
	}
	return attrs
}
