package telemetry

import (
	"context"
	"log/slog"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogSpanExporter implements the OpenTelemetry SpanExporter interface and
// writes completed spans to the structured log. It follows a fire-and-forget
// strategy: export problems are logged, never propagated, so tracing can
// never break the request path.
type LogSpanExporter struct {
	logger *slog.Logger
}

// NewLogSpanExporter creates an exporter writing to logger.
func NewLogSpanExporter(logger *slog.Logger) *LogSpanExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSpanExporter{logger: logger.With("component", "telemetry")}
}

// ExportSpans logs a batch of completed spans at debug level.
func (e *LogSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		attrs := []any{
			"span", span.Name(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
			"duration", span.EndTime().Sub(span.StartTime()).Round(time.Microsecond),
			"status", span.Status().Code.String(),
		}
		if span.Parent().IsValid() {
			attrs = append(attrs, "parent_span_id", span.Parent().SpanID().String())
		}
		for _, attr := range span.Attributes() {
			attrs = append(attrs, string(attr.Key), attr.Value.AsInterface())
		}
		e.logger.Debug("span completed", attrs...)
	}
	return nil
}

// Shutdown is a no-op; the logger outlives the exporter.
func (e *LogSpanExporter) Shutdown(context.Context) error {
	return nil
}
