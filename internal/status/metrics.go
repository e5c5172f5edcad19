package status

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names recorded by the poller.
const (
	metricRefreshes       = "claudewatch.status.refreshes"
	metricRefreshDuration = "claudewatch.status.refresh.duration"
)

// refreshMetrics records one data point per settled refresh.
type refreshMetrics struct {
	refreshes metric.Int64Counter
	duration  metric.Float64Histogram
}

func newRefreshMetrics(meter metric.Meter) (refreshMetrics, error) {
	refreshes, err := meter.Int64Counter(metricRefreshes,
		metric.WithDescription("Number of settled status refreshes"),
	)
	if err != nil {
		return noopRefreshMetrics(), err
	}

	duration, err := meter.Float64Histogram(metricRefreshDuration,
		metric.WithDescription("Time from refresh start until both probes settled"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return noopRefreshMetrics(), err
	}

	return refreshMetrics{refreshes: refreshes, duration: duration}, nil
}

func noopRefreshMetrics() refreshMetrics {
	return refreshMetrics{refreshes: noop.Int64Counter{}, duration: noop.Float64Histogram{}}
}

// record adds one refresh. fallback reports whether a probe failed.
func (m refreshMetrics) record(ctx context.Context, outcome string, fallback bool, state DisplayState, elapsed time.Duration) {
	result := "ok"
	if fallback {
		result = "fallback"
	}

	attrs := metric.WithAttributes(
		attribute.String("commit", outcome),
		attribute.String("result", result),
		attribute.String("state", state.String()),
	)

	m.refreshes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}
