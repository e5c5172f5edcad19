package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/musher-dev/claudewatch/internal/buildinfo"
)

const (
	defaultServiceName    = "claudewatch"
	defaultNamespace      = "musher"
	defaultMetricInterval = time.Minute
)

// TelemetryConfig controls the OTLP export of traces and refresh metrics.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Namespace   string
	Version     string
	Commit      string
	Environment string

	// MetricInterval is how often metrics are pushed. Zero means one minute.
	MetricInterval time.Duration
}

// TelemetryShutdown flushes both providers and restores the otel globals.
type TelemetryShutdown func(ctx context.Context) error

// otelGlobals is the process-wide otel state SetupTelemetry replaces.
type otelGlobals struct {
	tracers    trace.TracerProvider
	meters     metric.MeterProvider
	propagator propagation.TextMapPropagator
	errors     otel.ErrorHandler
}

func captureGlobals() otelGlobals {
	return otelGlobals{
		tracers:    otel.GetTracerProvider(),
		meters:     otel.GetMeterProvider(),
		propagator: otel.GetTextMapPropagator(),
		errors:     otel.GetErrorHandler(),
	}
}

func (g otelGlobals) restore() {
	otel.SetTracerProvider(g.tracers)
	otel.SetMeterProvider(g.meters)
	otel.SetTextMapPropagator(g.propagator)
	otel.SetErrorHandler(g.errors)
}

// SetupTelemetry installs OTLP/HTTP tracer and meter providers. When cfg is
// nil or disabled the globals are left alone and the shutdown is a no-op.
func SetupTelemetry(ctx context.Context, cfg *TelemetryConfig) (TelemetryShutdown, error) {
	if cfg == nil || !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(resourceAttributes(cfg)...))
	if err != nil {
		return noopShutdown, fmt.Errorf("merge otel resource: %w", err)
	}

	tracers, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return noopShutdown, err
	}

	meters, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tracers.Shutdown(ctx)
		return noopShutdown, err
	}

	saved := captureGlobals()

	otel.SetTracerProvider(tracers)
	otel.SetMeterProvider(meters)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	// Export failures must never reach the terminal.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(error) {}))

	return func(shutdownCtx context.Context) error {
		defer saved.restore()

		var errs []error

		if err := tracers.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}

		if err := meters.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}

		return errors.Join(errs...)
	}, nil
}

func newTracerProvider(ctx context.Context, cfg *TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithCompression(otlptracehttp.GzipCompression)}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
}

func newMeterProvider(ctx context.Context, cfg *TelemetryConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression)}
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)), nil
}

func resourceAttributes(cfg *TelemetryConfig) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), defaultServiceName)),
		attribute.String("service.version", cfg.Version),
		attribute.String("service.namespace", firstNonEmpty(cfg.Namespace, defaultNamespace)),
		attribute.String("deployment.environment", firstNonEmpty(cfg.Environment, os.Getenv("OTEL_ENVIRONMENT"), "development")),
	}

	if cfg.Commit != "" {
		attrs = append(attrs, attribute.String("service.commit", cfg.Commit))
	}

	return attrs
}

// Tracer returns a named tracer from the global TracerProvider, scoped to the
// running build.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name, trace.WithInstrumentationVersion(buildinfo.Version))
}

// Meter returns a meter from the global meter provider. Until a provider is
// installed the instruments it creates are no-ops.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name, metric.WithInstrumentationVersion(buildinfo.Version))
}

// EndSpan records err (when non-nil) on span, sets its status and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// IsTelemetryEnabled reports whether OTEL_ENABLED is set to a true value.
func IsTelemetryEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))) {
	case "1", "true", "yes":
		return true
	}

	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func noopShutdown(context.Context) error { return nil }
