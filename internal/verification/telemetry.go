package verification

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/redmonkez12/nonprofit-portal/internal/verification"

type instruments struct {
	tracer trace.Tracer
	cycles metric.Int64Counter
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)

	cycles, err := meter.Int64Counter("verification.cycles",
		metric.WithDescription("Verification operations by flow, operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		otel.Handle(err)
		cycles = noop.Int64Counter{}
	}

	return &instruments{
		tracer: otel.Tracer(instrumentationName),
		cycles: cycles,
	}
}

func (in *instruments) start(ctx context.Context, flow, op string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "verification."+op,
		trace.WithAttributes(attribute.String("verification.flow", flow)),
	)
}

func (in *instruments) end(ctx context.Context, span trace.Span, flow, op string, err error) {
	result := outcome(err)

	span.SetAttributes(attribute.String("verification.outcome", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, result)
	}
	span.End()

	in.cycles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("op", op),
		attribute.String("outcome", result),
	))
}
