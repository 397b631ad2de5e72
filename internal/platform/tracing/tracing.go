// Package tracing wraps the OpenTelemetry tracer used across the engine.
// Without a registered provider spans are no-ops.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "riskgate"

// StartSpan starts a span with optional attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// Fail marks span as errored.
func Fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func Subject(s string) attribute.KeyValue { return attribute.String("risk.subject", s) }
func Action(a string) attribute.KeyValue { return attribute.String("risk.action", a) }
func Level(l string) attribute.KeyValue { return attribute.String("risk.level", l) }
func Score(s int) attribute.KeyValue { return attribute.Int("risk.score", s) }
func PayoutID(id string) attribute.KeyValue { return attribute.String("payout.id", id) }
