package logger

import "context"

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

var requestIDKey = contextKey{}

// WithRequestID stores the request ID on the context for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
