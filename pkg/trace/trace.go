package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

const TraceIDKey = "trace_id"

// GenerateTraceID returns a new random trace id.
func GenerateTraceID() string {
	return uuid.NewString()
}

func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// HeaderName is the HTTP header carrying the trace id.
func HeaderName() string {
	return "X-Trace-ID"
}
