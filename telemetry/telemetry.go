// Package telemetry wires OpenTelemetry tracing and metrics into the
// process-global providers. Spans and metric snapshots land in the
// structured log; there is no external collector dependency.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Telemetry owns the installed providers and shuts them down together.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Setup installs tracer and meter providers as the otel globals. The span
// exporter is unbatched: the platform's mutation spans are low-volume and
// immediate export keeps them adjacent to the request logs they belong to.
func Setup(serviceName string, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewLogSpanExporter(logger))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			NewLogMetricExporter(logger),
			sdkmetric.WithInterval(time.Minute),
		)),
	)
	otel.SetMeterProvider(mp)

	return &Telemetry{tracerProvider: tp, meterProvider: mp}, nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := t.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
