// Package tracing wires OpenTelemetry the way the teacher does: a
// stdout-exporting tracer provider, good enough to produce spans for local
// inspection without standing up a collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InitTracer installs a global TracerProvider that writes spans to stdout
// and returns its Shutdown function.
func InitTracer(serviceName string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the named tracer from the global provider, for
// Orchestrator spans around Enroll/Verify.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}
