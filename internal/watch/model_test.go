package watch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/musher-dev/claudewatch/internal/probe"
	"github.com/musher-dev/claudewatch/internal/status"
)

type fakePoller struct {
	mu        sync.Mutex
	snap      status.Snapshot
	observers []func(status.Snapshot)
	triggered int
	stopped   bool
}

func (f *fakePoller) Snapshot() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.snap
}

func (f *fakePoller) Subscribe(fn func(status.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.observers = append(f.observers, fn)

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.observers = nil
	}
}

func (f *fakePoller) Trigger(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.triggered++
}

func (f *fakePoller) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
}

func (f *fakePoller) publish(s status.Snapshot) {
	f.mu.Lock()
	observers := slices.Clone(f.observers)
	f.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

type fakeRemediator struct {
	listeners bool
	emitted   int
	err       error
}

func (f *fakeRemediator) HasListeners() bool { return f.listeners }

func (f *fakeRemediator) Emit(context.Context) error {
	f.emitted++
	return f.err
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func committed(installed, authenticated bool) status.Snapshot {
	return status.Snapshot{
		Record: &status.Record{
			Version:   probe.VersionStatus{IsInstalled: installed, Version: "1.2.3", Output: "1.2.3 (Claude Code)"},
			Auth:      probe.AuthStatus{IsAuthenticated: authenticated},
			CheckedAt: time.Now(),
		},
	}
}

func TestModel_ShowsInitialSnapshot(t *testing.T) {
	p := &fakePoller{}
	m := New(context.Background(), p, nil)

	if view := m.View(); !strings.Contains(view, "Unknown") {
		t.Errorf("View() = %q, want Unknown before the first refresh", view)
	}

	if len(p.observers) != 1 {
		t.Fatalf("New() registered %d observers, want 1", len(p.observers))
	}
}

func TestModel_SnapshotUpdates(t *testing.T) {
	p := &fakePoller{}
	m := New(context.Background(), p, nil)

	p.publish(status.Snapshot{Checking: true})
	p.publish(committed(true, true))

	msg := m.waitForSnapshot()()

	if _, ok := msg.(SnapshotMsg); !ok {
		t.Fatalf("waitForSnapshot() = %T, want SnapshotMsg", msg)
	}

	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Error("Update(SnapshotMsg) should keep listening for snapshots")
	}

	view := m.View()
	if !strings.Contains(view, "Ready (v1.2.3)") || !strings.Contains(view, "Claude Code is ready (v1.2.3)") {
		t.Errorf("View() = %q, want latest snapshot rendered", view)
	}

	if strings.Contains(view, "Checking") {
		t.Errorf("View() = %q, older snapshot should have been replaced", view)
	}
}

func TestModel_RefreshKey(t *testing.T) {
	p := &fakePoller{}
	m := New(context.Background(), p, nil)

	m.Update(keyMsg("r"))

	if p.triggered != 1 {
		t.Errorf("triggered = %d, want 1", p.triggered)
	}
}

func TestModel_RemediateKey(t *testing.T) {
	tests := []struct {
		name      string
		snap      status.Snapshot
		listeners bool
		wantEmit  bool
	}{
		{"not installed with listener", committed(false, false), true, true},
		{"auth required with listener", committed(true, false), true, true},
		{"not installed without listener", committed(false, false), false, false},
		{"ready", committed(true, true), true, false},
		{"checking", status.Snapshot{Checking: true, Record: committed(false, false).Record}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoller{snap: tt.snap}
			r := &fakeRemediator{listeners: tt.listeners}
			m := New(context.Background(), p, r)

			_, cmd := m.Update(keyMsg("c"))

			if !tt.wantEmit {
				if cmd != nil {
					t.Fatal("remediation key should be ignored")
				}

				return
			}

			if cmd == nil {
				t.Fatal("remediation key returned no command")
			}

			if done, ok := cmd().(RemediationDoneMsg); !ok || done.Err != nil {
				t.Fatalf("command produced %#v", done)
			}

			if r.emitted != 1 {
				t.Errorf("emitted = %d, want 1", r.emitted)
			}
		})
	}
}

func TestModel_RemediationHelp(t *testing.T) {
	p := &fakePoller{snap: committed(true, false)}
	m := New(context.Background(), p, &fakeRemediator{listeners: true})

	if view := m.View(); !strings.Contains(view, "authenticate") {
		t.Errorf("View() = %q, want authenticate hint", view)
	}

	m.Update(SnapshotMsg(committed(true, true)))

	if view := m.View(); strings.Contains(view, "authenticate") {
		t.Errorf("View() = %q, remediation hint should be hidden when ready", view)
	}
}

func TestModel_RemediationDone(t *testing.T) {
	m := New(context.Background(), &fakePoller{}, nil)

	m.Update(RemediationDoneMsg{Err: errors.New("exit status 1")})

	if view := m.View(); !strings.Contains(view, "Remediation failed: exit status 1") {
		t.Errorf("View() = %q, want failure notice", view)
	}
}

func TestModel_Quit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{keyMsg("q"), {Type: tea.KeyCtrlC}} {
		p := &fakePoller{}
		m := New(context.Background(), p, nil)

		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("Update(%q) returned no command", msg.String())
		}

		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("Update(%q) did not quit", msg.String())
		}

		if !p.stopped {
			t.Error("quitting should stop the poller")
		}

		if len(p.observers) != 0 {
			t.Error("quitting should unsubscribe")
		}

		if m.View() != "" {
			t.Error("View() after quit should be empty")
		}
	}
}

func TestStateStyle(t *testing.T) {
	if StateStyle(status.StateReady).GetForeground() == StateStyle(status.StateNotInstalled).GetForeground() {
		t.Error("ready and not-installed should use different colors")
	}

	if StateStyle(status.StateChecking).GetForeground() != StateStyle(status.StateAuthRequired).GetForeground() {
		t.Error("checking and auth-required should share the pending color")
	}
}

func TestModel_FitTruncatesByCellWidth(t *testing.T) {
	m := New(context.Background(), &fakePoller{}, nil)

	long := "OAuth token expired at 2026-03-01T11:00:00Z"
	if got := m.fit(long, detailIndent); got != long {
		t.Errorf("fit() before sizing = %q, want unchanged", got)
	}

	m.Update(tea.WindowSizeMsg{Width: 12, Height: 10})

	tests := []struct {
		name string
		line string
		want string
	}{
		{"fits", "ready", "ready"},
		{"ascii", long, "OAuth tok…"},
		{"wide runes", "你好世界测试", "你好世界…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.fit(tt.line, detailIndent)
			if got != tt.want {
				t.Errorf("fit(%q) = %q, want %q", tt.line, got, tt.want)
			}

			if w := runewidth.StringWidth(got); w > 12-detailIndent {
				t.Errorf("fit(%q) width = %d, want <= %d", tt.line, w, 12-detailIndent)
			}
		})
	}
}
