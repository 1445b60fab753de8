// Package observability wires OpenTelemetry tracing and metrics.
//
//	shutdown, err := observability.Init(ctx, cfg.Observability, "reconflow", version.Version)
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanTaskInvoke)
//	defer span.End()
//
// When tracing or metrics are disabled the global no-op providers stay in
// place, so instrumented code needs no conditionals.
package observability
