// Package tracing provides OpenTelemetry tracing for the Queue Engine and
// chat dispatch.
//
// InitTracer installs a process-wide TracerProvider; GetTracer returns the
// tracer used to start spans around the operations worth tracing end to end
// (queue claim/complete, webhook dispatch). No exporter is wired in by
// default, so spans are sampled and discarded until one is configured.
//
// Example usage:
//
//	shutdown := tracing.InitTracer("newsqueue-publish")
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.GetTracer().Start(ctx, "queue.Claim")
//	defer span.End()
package tracing
