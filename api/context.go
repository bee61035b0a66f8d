package api

import (
	"context"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}

// WithRequestID attaches a caller-chosen request ID to ctx. The client sends
// it as X-Request-ID so backend audit logs can be correlated with client
// traces. Without one, the client generates a UUID per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if id, _ := ctx.Value(requestIDContextKey{}).(string); id != "" {
		return id
	}
	return uuid.NewString()
}
