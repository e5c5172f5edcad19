package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/musher-dev/claudewatch/internal/status"
)

func TestPrintWatchLine(t *testing.T) {
	checked := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)

	out, buf := testWriter()

	snap := status.Snapshot{
		Record:        &status.Record{Version: readyVersion, Auth: loggedIn, CheckedAt: checked},
		LastAttemptAt: checked.Add(-time.Second),
	}

	if err := printWatchLine(out, snap); err != nil {
		t.Fatalf("printWatchLine() error = %v", err)
	}

	want := "✓ " + checked.Local().Format(time.TimeOnly) + "  Claude Code is ready (v1.2.3)\n"
	if got := buf.String(); got != want {
		t.Errorf("printWatchLine() = %q, want %q", got, want)
	}
}

func TestPrintWatchLine_JSON(t *testing.T) {
	out, buf := testWriter()
	out.JSON = true

	snap := status.Snapshot{Record: &status.Record{Version: missingVersion, Auth: loggedOut}}

	if err := printWatchLine(out, snap); err != nil {
		t.Fatalf("printWatchLine() error = %v", err)
	}

	var report StatusReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	if report.State != status.StateNotInstalled || !report.Remediable {
		t.Errorf("report = %+v, want remediable NOT_INSTALLED", report)
	}
}

func TestRunPlainWatch_PrintsCompletedChecks(t *testing.T) {
	isolateConfig(t)
	stubProbes(t, fixedProbes(readyVersion, loggedOut))

	out, buf := testWriter()

	ctx, cancel := context.WithTimeout(out.WithContext(t.Context()), 500*time.Millisecond)
	defer cancel()

	client, err := newProbeClient(nil)
	if err != nil {
		t.Fatalf("newProbeClient() error = %v", err)
	}

	p := status.NewPoller(client)
	defer p.Stop()

	if err := runPlainWatch(ctx, out, p); err != nil {
		t.Fatalf("runPlainWatch() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "Claude Code needs authentication") {
		t.Errorf("output missing the committed status:\n%s", got)
	}

	header, rest, _ := strings.Cut(got, "\n")
	if header != "Checking Claude Code every 5m0s (Ctrl+C to stop)" {
		t.Errorf("header = %q, want the refresh interval", header)
	}

	if strings.Contains(rest, "Checking") {
		t.Errorf("plain watch should skip checking snapshots:\n%s", got)
	}

	if n := strings.Count(rest, "\n"); n != 1 {
		t.Errorf("printed %d status lines, want 1 for the immediate check:\n%s", n, got)
	}
}

func TestWatchCmd_PlainFlag(t *testing.T) {
	isolateConfig(t)
	stubProbes(t, fixedProbes(readyVersion, loggedIn))

	out, buf := testWriter()

	ctx, cancel := context.WithTimeout(out.WithContext(t.Context()), 500*time.Millisecond)
	defer cancel()

	cmd := newWatchCmd()
	cmd.SetArgs([]string{"--plain"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("watch --plain should stop cleanly on cancel: %v", err)
	}

	if !strings.Contains(buf.String(), "Claude Code is ready (v1.2.3)") {
		t.Errorf("output missing ready line:\n%s", buf.String())
	}
}
