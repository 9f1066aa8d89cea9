package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eventintake/internal/constants"
)

const SubmissionSpanName = "submission.submit"

var (
	AttrSubmissionOutcome = attribute.Key("submission.outcome")
	AttrClientIdentity    = attribute.Key("submission.client_identity")
)

// StartSubmission opens the span covering one submission attempt.
func StartSubmission(ctx context.Context, identity string) (context.Context, trace.Span) {
	return GetTracer(constants.ServiceName).Start(ctx, SubmissionSpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(AttrClientIdentity.String(identity)),
	)
}

// EndSubmission records the outcome on span and ends it. A non-nil err marks
// the span failed.
func EndSubmission(span trace.Span, outcome string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
	}
	span.SetAttributes(AttrSubmissionOutcome.String(outcome))
	span.End()
}
