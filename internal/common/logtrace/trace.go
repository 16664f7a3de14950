// Package logtrace provides logging and tracing utilities for the application.
// It integrates with zerolog for structured logging and supports request tracing.
package logtrace

import (
	"context"
	"os"
)

// requestIdContextKey is a custom type for context key to store request IDs.
type requestIdContextKey string

const requestIdKey = requestIdContextKey("requestId")

// WithRequestId returns a context carrying the given request ID.
// The ID can be recovered later with RequestIdFromContext.
func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey, requestId)
}

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or if no request ID is found.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(requestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether request tracing is enabled.
// Tracing is switched on by setting SLUICE_TRACE in the environment.
func IsTraceEnabled() bool {
	return os.Getenv("SLUICE_TRACE") != ""
}
