package util

import (
	"context"
	"time"
)

// ctxKey is an unexported type for context keys defined in this package.
type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	startTimeKey ctxKey = "start_time"
	routeNameKey ctxKey = "route_name"
)

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithStartTime returns a context carrying the request start time.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, t)
}

// StartTimeFromContext extracts the request start time from the context.
func StartTimeFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// ContextWithRouteName returns a context carrying the matched route name.
func ContextWithRouteName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, routeNameKey, name)
}

// RouteNameFromContext extracts the matched route name from the context.
func RouteNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(routeNameKey).(string); ok {
		return v
	}
	return ""
}
