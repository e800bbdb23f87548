package monitoring

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the eligibility spans
const TracerName = "github.com/LinuxForHealth/connect-contracts"

// TracingManager handles distributed tracing. Exporter setup is left to the
// host process; without one the global provider is a no-op.
type TracingManager struct {
	tracer trace.Tracer
}

// NewTracingManager creates a tracing manager on the given provider, or the global one when nil
func NewTracingManager(provider trace.TracerProvider) *TracingManager {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracingManager{tracer: provider.Tracer(TracerName)}
}

// StartEligibilitySpan starts the span covering one eligibility check
func (tm *TracingManager) StartEligibilitySpan(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "eligibility.check",
		trace.WithAttributes(attribute.String("eligibility.request_id", requestID)),
	)
}

// StartResolveSpan starts a span for one FHIR reference resolution
func (tm *TracingManager) StartResolveSpan(ctx context.Context, reference string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "fhir.resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("fhir.reference", reference)),
	)
}

// StartPublishSpan starts a span for an event publication
func (tm *TracingManager) StartPublishSpan(ctx context.Context, subject, eventID string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "messaging.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.String("messaging.message.id", eventID),
		),
	)
}

// RecordError marks span as failed with err
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
