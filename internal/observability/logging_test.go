package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_DefaultFileFallbackForInteractiveAuto(t *testing.T) {
	stateRoot := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateRoot)

	cfg := &Config{
		Level:          "info",
		Format:         "json",
		StderrMode:     "auto",
		InteractiveTTY: true,
		SessionID:      "session-test",
		CommandPath:    "claudewatch watch",
		Version:        "test",
		Commit:         "abc123",
	}

	logger, cleanup, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("hello from test", slog.String("api_key", "sk-ant-secret"))

	if closeErr := cleanup(); closeErr != nil {
		t.Fatalf("cleanup() error = %v", closeErr)
	}

	logPath := filepath.Join(stateRoot, "claudewatch", "logs", "claudewatch.log")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile(%q) error = %v", logPath, err)
	}

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}

	if record["session.id"] != "session-test" {
		t.Errorf("session.id = %v, want %q", record["session.id"], "session-test")
	}

	if record["api_key"] != redactedValue {
		t.Errorf("api_key = %v, want redacted", record["api_key"])
	}
}

func TestNewLogger_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"level", Config{Level: "verbose", StderrMode: "on"}, "invalid log level"},
		{"stderr mode", Config{StderrMode: "sometimes"}, "invalid --log-stderr"},
		{"format", Config{Format: "xml", StderrMode: "on"}, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLogger(&tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("NewLogger() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestShouldEnableStderr(t *testing.T) {
	tests := []struct {
		mode        string
		interactive bool
		want        bool
	}{
		{"", false, true},
		{"auto", true, false},
		{"on", true, true},
		{"off", false, false},
		{"1", true, true},
	}

	for _, tt := range tests {
		got, err := shouldEnableStderr(tt.mode, tt.interactive)
		if err != nil {
			t.Fatalf("shouldEnableStderr(%q) error = %v", tt.mode, err)
		}

		if got != tt.want {
			t.Errorf("shouldEnableStderr(%q, %v) = %v, want %v", tt.mode, tt.interactive, got, tt.want)
		}
	}
}

func TestRotateLogFile_RotatesAndKeepsBoundedBackups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "claudewatch.log")

	for suffix, body := range map[string]string{".1": "one", ".2": "two", ".3": "three", "": "1234567890"} {
		if err := os.WriteFile(logPath+suffix, []byte(body), 0o600); err != nil {
			t.Fatalf("write %q: %v", suffix, err)
		}
	}

	if err := rotateLogFile(logPath, 5, 3); err != nil {
		t.Fatalf("rotateLogFile() error = %v", err)
	}

	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		t.Fatalf("expected current log to be rotated away, stat err = %v", err)
	}

	want := map[string]string{".1": "1234567890", ".2": "one", ".3": "two"}
	for suffix, body := range want {
		data, err := os.ReadFile(logPath + suffix)
		if err != nil {
			t.Fatalf("read %s: %v", suffix, err)
		}

		if string(data) != body {
			t.Errorf("%s = %q, want %q", suffix, data, body)
		}
	}
}

func TestRotateLogFile_BelowThresholdIsNoop(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "claudewatch.log")
	if err := os.WriteFile(logPath, []byte("abc"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := rotateLogFile(logPath, 1024, 3); err != nil {
		t.Fatalf("rotateLogFile() error = %v", err)
	}

	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Fatalf("unexpected backup, stat err = %v", err)
	}
}

func TestFromContext(t *testing.T) {
	logger := Discard()
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext() did not return the stored logger")
	}

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext() without logger should return slog.Default()")
	}
}

func TestTraceHandler_StampsSpanIDs(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(traceHandler{slog.NewJSONHandler(&buf, nil)}).With(slog.String("refresh.id", "r1"))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("claudewatch.test").Start(t.Context(), "status.refresh")
	defer span.End()

	logger.InfoContext(ctx, "in span")
	logger.Info("no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}

	var inSpan, outside map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &inSpan); err != nil {
		t.Fatal(err)
	}

	if err := json.Unmarshal([]byte(lines[1]), &outside); err != nil {
		t.Fatal(err)
	}

	sc := span.SpanContext()
	if inSpan["trace.id"] != sc.TraceID().String() || inSpan["span.id"] != sc.SpanID().String() {
		t.Errorf("record in span = %v, want trace %s span %s", inSpan, sc.TraceID(), sc.SpanID())
	}

	if inSpan["refresh.id"] != "r1" {
		t.Error("refresh.id lost through WithAttrs")
	}

	if _, ok := outside["trace.id"]; ok {
		t.Errorf("record without span carries trace.id: %v", outside)
	}
}
