package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var attrEncoder = attribute.DefaultEncoder()

// LogMetricExporter implements the OpenTelemetry metric Exporter interface
// and writes counter and gauge snapshots to the structured log.
type LogMetricExporter struct {
	logger *slog.Logger
}

// NewLogMetricExporter creates an exporter writing to logger.
func NewLogMetricExporter(logger *slog.Logger) *LogMetricExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetricExporter{logger: logger.With("component", "telemetry")}
}

// Temporality returns cumulative temporality for all instrument kinds; the
// log is a running record, not a delta stream.
func (e *LogMetricExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// Aggregation returns the default aggregation for the instrument kind.
func (e *LogMetricExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export logs each data point at debug level.
func (e *LogMetricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					e.logger.Debug("metric", "name", m.Name, "value", dp.Value,
						"attrs", dp.Attributes.Encoded(attrEncoder))
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					e.logger.Debug("metric", "name", m.Name, "value", dp.Value,
						"attrs", dp.Attributes.Encoded(attrEncoder))
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					e.logger.Debug("metric", "name", m.Name, "value", dp.Value,
						"attrs", dp.Attributes.Encoded(attrEncoder))
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					e.logger.Debug("metric", "name", m.Name, "value", dp.Value,
						"attrs", dp.Attributes.Encoded(attrEncoder))
				}
			}
		}
	}
	return nil
}

// ForceFlush is a no-op; Export writes synchronously.
func (e *LogMetricExporter) ForceFlush(context.Context) error { return nil }

// Shutdown is a no-op; the logger outlives the exporter.
func (e *LogMetricExporter) Shutdown(context.Context) error { return nil }
