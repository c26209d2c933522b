package services

import "context"

type contextKey string

const (
	photoIDKey   contextKey = "photo_id"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// WithPhotoID annotates context with the timeline entry identifier.
func WithPhotoID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, photoIDKey, id)
}

// PhotoIDFromContext extracts the timeline entry identifier if present.
func PhotoIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(photoIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the entry operation name (upload, generate).
func WithOperation(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
