package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/pagebench/internal/failure"
)

// Attribute keys recorded on benchmark spans.
const (
	AttrSuite     = attribute.Key("pagebench.suite")
	AttrIteration = attribute.Key("pagebench.iteration")
	AttrRunID     = attribute.Key("pagebench.run_id")
	AttrAppID     = attribute.Key("pagebench.app_id")
	AttrDuration  = attribute.Key("pagebench.duration_ms")
	AttrFailure   = attribute.Key("pagebench.failure")
)

// StartIterationSpan starts the host-side span around one suite round trip.
func StartIterationSpan(ctx context.Context, tracer trace.Tracer, runID, suiteName string, iteration int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "suite "+suiteName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrSuite.String(suiteName),
			AttrIteration.Int(iteration),
			AttrRunID.String(runID),
		),
	)
}

// StartPageSpan continues the trace carried by a run request on the page side.
func StartPageSpan(ctx context.Context, tracer trace.Tracer, carrier map[string]string, appID, suiteName string) (context.Context, trace.Span) {
	ctx = Extract(ctx, carrier)
	return tracer.Start(ctx, "run "+suiteName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			AttrSuite.String(suiteName),
			AttrAppID.String(appID),
		),
	)
}

// EndSpan finishes a span, recording error status and the failure kind if
// applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		if kind := failure.KindOf(err); kind != failure.KindNone {
			span.SetAttributes(AttrFailure.String(string(kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Inject serialises the trace context of ctx into a request carrier. It
// returns nil when ctx carries nothing to propagate.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}

// Extract restores trace context from a request carrier.
func Extract(ctx context.Context, carrier map[string]string) context.Context {
	if len(carrier) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}
