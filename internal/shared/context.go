package shared

import (
	"context"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}

// ContextWithRequestID stores the correlation id in context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext extracts the correlation id, generating one when absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
