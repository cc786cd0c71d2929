package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer used by the Queue Engine and chat dispatch.
var tracer = otel.Tracer("newsqueue")

// GetTracer returns the global tracer for creating spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// InitTracer installs a process-wide TracerProvider for serviceName and
// returns a shutdown func the caller must run before exit. No exporter is
// registered by default, so spans are created and sampled but not shipped
// anywhere; wire in an exporter (OTLP, stdout, etc.) via sdktrace.WithBatcher
// here when a backend is chosen.
func InitTracer(serviceName string) func(context.Context) error {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
