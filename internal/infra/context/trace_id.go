package context

import (
	"context"
)

type contextKey string

const contextKeyTraceID = contextKey("traceID")

// WithTraceID creates a new context carrying the given trace ID. The
// console front-end issues a fresh trace ID per menu action so the log
// records of one action can be correlated.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns the trace ID and true if present, or empty string and false if
// not present.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok
}
