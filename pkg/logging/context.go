package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        contextKey = "trace_id"
	RequestIDKey      contextKey = "request_id"
	SubmissionIDKey   contextKey = "submission_id"
	ClientIdentityKey contextKey = "client_identity"
	ServiceNameKey    contextKey = "service_name"
)

// fieldOrder fixes the order in which context values are emitted as log fields.
var fieldOrder = []contextKey{
	TraceIDKey,
	RequestIDKey,
	SubmissionIDKey,
	ClientIdentityKey,
	ServiceNameKey,
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithSubmissionID(ctx context.Context, submissionID string) context.Context {
	return context.WithValue(ctx, SubmissionIDKey, submissionID)
}

func WithClientIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ClientIdentityKey, identity)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func GetSubmissionID(ctx context.Context) string {
	return getString(ctx, SubmissionIDKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, len(fieldOrder)*2)
	for _, key := range fieldOrder {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
