package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/musher-dev/claudewatch/internal/buildinfo"
	"github.com/musher-dev/claudewatch/internal/observability"
)

type testPropagator struct{}

func (testPropagator) Inject(context.Context, propagation.TextMapCarrier) {}

func (testPropagator) Extract(ctx context.Context, _ propagation.TextMapCarrier) context.Context {
	return ctx
}

func (testPropagator) Fields() []string { return nil }

// sentinelMeters is a recognizable meter provider.
type sentinelMeters struct{ metricnoop.MeterProvider }

type testErrorHandler struct{}

func (testErrorHandler) Handle(error) {}

// installSentinels replaces the otel globals with recognizable values and
// restores the originals when the test ends.
func installSentinels(t *testing.T) *sdktrace.TracerProvider {
	t.Helper()

	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	origPropagator := otel.GetTextMapPropagator()
	origErrorHandler := otel.GetErrorHandler()

	sentinelTP := sdktrace.NewTracerProvider()

	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
		otel.SetTextMapPropagator(origPropagator)
		otel.SetErrorHandler(origErrorHandler)

		_ = sentinelTP.Shutdown(context.Background())
	})

	otel.SetTracerProvider(sentinelTP)
	otel.SetMeterProvider(sentinelMeters{})
	otel.SetTextMapPropagator(testPropagator{})
	otel.SetErrorHandler(testErrorHandler{})

	return sentinelTP
}

func assertSentinels(t *testing.T, sentinelTP *sdktrace.TracerProvider, when string) {
	t.Helper()

	if got := otel.GetTracerProvider(); got != sentinelTP {
		t.Fatalf("tracer provider not restored %s", when)
	}

	if _, ok := otel.GetMeterProvider().(sentinelMeters); !ok {
		t.Fatalf("meter provider not restored %s", when)
	}

	if _, ok := otel.GetTextMapPropagator().(testPropagator); !ok {
		t.Fatalf("propagator not restored %s", when)
	}

	if _, ok := otel.GetErrorHandler().(testErrorHandler); !ok {
		t.Fatalf("error handler not restored %s", when)
	}
}

func TestSetupTelemetry_Disabled(t *testing.T) {
	sentinelTP := installSentinels(t)

	shutdown, err := observability.SetupTelemetry(t.Context(), &observability.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	assertSentinels(t, sentinelTP, "when telemetry disabled")
}

func TestSetupTelemetry_NilConfig(t *testing.T) {
	shutdown, err := observability.SetupTelemetry(t.Context(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTelemetry_EnabledRestoresOnShutdown(t *testing.T) {
	sentinelTP := installSentinels(t)

	shutdown, err := observability.SetupTelemetry(t.Context(), &observability.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		ServiceName: "claudewatch-test",
		Version:     "0.0.1",
		Commit:      "abc123",
		Environment: "test",

		MetricInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tp := otel.GetTracerProvider()
	if _, isNoop := tp.(*noop.TracerProvider); isNoop {
		t.Fatal("expected real TracerProvider, got noop")
	}

	if tp == sentinelTP {
		t.Fatal("expected setup to replace tracer provider")
	}

	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("meter provider = %T, want the SDK provider", otel.GetMeterProvider())
	}

	if err := shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	assertSentinels(t, sentinelTP, "after shutdown")
}

func TestSetupTelemetry_ShutdownRestoresGlobalsOnCanceledContext(t *testing.T) {
	sentinelTP := installSentinels(t)

	shutdown, err := observability.SetupTelemetry(t.Context(), &observability.TelemetryConfig{Enabled: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	canceledCtx, cancel := context.WithCancel(t.Context())
	cancel()

	_ = shutdown(canceledCtx)

	assertSentinels(t, sentinelTP, "on shutdown error")
}

func TestEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := tp.Tracer("claudewatch.test")

	_, okSpan := tracer.Start(t.Context(), "ok")
	observability.EndSpan(okSpan, nil)

	_, failSpan := tracer.Start(t.Context(), "fail")
	observability.EndSpan(failSpan, errors.New("probe exploded"))

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}

	if got := ended[0].Status().Code; got != codes.Ok {
		t.Errorf("ok span status = %v, want %v", got, codes.Ok)
	}

	if got := ended[1].Status(); got.Code != codes.Error || got.Description != "probe exploded" {
		t.Errorf("fail span status = %+v, want error with description", got)
	}

	if len(ended[1].Events()) == 0 {
		t.Error("fail span should carry a recorded error event")
	}
}

func TestIsTelemetryEnabled(t *testing.T) {
	tests := []struct {
		envValue string
		want     bool
	}{
		{"", false},
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"random", false},
		{"  true  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("OTEL_ENABLED", tt.envValue)

			if got := observability.IsTelemetryEnabled(); got != tt.want {
				t.Errorf("IsTelemetryEnabled() = %v, want %v (env=%q)", got, tt.want, tt.envValue)
			}
		})
	}
}

func TestTracer_ScopedToBuildVersion(t *testing.T) {
	installSentinels(t)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)

	orig := buildinfo.Version
	buildinfo.Version = "1.4.0"
	t.Cleanup(func() { buildinfo.Version = orig })

	_, span := observability.Tracer("claudewatch/status").Start(t.Context(), "status.refresh")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}

	if got := ended[0].InstrumentationScope().Version; got != "1.4.0" {
		t.Errorf("scope version = %q, want %q", got, "1.4.0")
	}
}
