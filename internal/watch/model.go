// Package watch hosts a status poller in a terminal view: a live indicator
// with the detail lines under it, an out-of-cycle refresh key and, when the
// state allows it, a key that emits the remediation signal.
package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/musher-dev/claudewatch/internal/status"
)

// Poller is the part of status.Poller the view drives.
type Poller interface {
	Snapshot() status.Snapshot
	Subscribe(fn func(status.Snapshot)) func()
	Trigger(ctx context.Context)
	Stop()
}

// Remediator is the part of remediation.Dispatcher the view drives.
type Remediator interface {
	HasListeners() bool
	Emit(ctx context.Context) error
}

// SnapshotMsg carries a poller state change into the update loop.
type SnapshotMsg status.Snapshot

// RemediationDoneMsg reports the outcome of an emitted remediation signal.
type RemediationDoneMsg struct {
	Err error
}

var (
	readyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(detailIndent)
	noticeStyle  = lipgloss.NewStyle().Italic(true)
)

// StateStyle returns the indicator style of a display state.
func StateStyle(state status.DisplayState) lipgloss.Style {
	switch state {
	case status.StateReady:
		return readyStyle
	case status.StateNotInstalled:
		return missingStyle
	default:
		return pendingStyle
	}
}

// Model is the bubbletea model of the watch view.
type Model struct {
	ctx        context.Context
	poller     Poller
	remediator Remediator

	snapshots   chan status.Snapshot
	unsubscribe func()

	snap     status.Snapshot
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	notice   string
	width    int
	quitting bool
}

// New creates the view and subscribes it to poller. remediator may be nil,
// in which case remediation is never offered. The caller starts the poller.
func New(ctx context.Context, poller Poller, remediator Remediator) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	m := &Model{
		ctx:        ctx,
		poller:     poller,
		remediator: remediator,
		snapshots:  make(chan status.Snapshot, 1),
		spinner:    sp,
		help:       help.New(),
		keys:       DefaultKeyMap,
	}

	m.unsubscribe = poller.Subscribe(m.push)
	m.snap = poller.Snapshot()
	m.syncKeys()

	return m
}

// push hands s to the update loop without blocking the poller. Only the
// latest snapshot matters, so an unread older one is replaced.
func (m *Model) push(s status.Snapshot) {
	for {
		select {
		case m.snapshots <- s:
			return
		default:
		}

		select {
		case <-m.snapshots:
		default:
		}
	}
}

func (m *Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg(<-m.snapshots)
	}
}

func (m *Model) display() status.Display {
	return m.snap.Display()
}

func (m *Model) remediationOffered() bool {
	return m.remediator != nil && m.display().OffersRemediation(m.remediator.HasListeners())
}

func (m *Model) syncKeys() {
	offered := m.remediationOffered()
	m.keys.Remediate.SetEnabled(offered)

	if offered {
		m.keys.Remediate.SetHelp("c", strings.ToLower(m.display().RemediationLabel))
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForSnapshot())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

		return m, nil
	case SnapshotMsg:
		m.snap = status.Snapshot(msg)
		m.syncKeys()

		return m, m.waitForSnapshot()
	case RemediationDoneMsg:
		if msg.Err != nil {
			m.notice = "Remediation failed: " + msg.Err.Error()
		} else {
			m.notice = "Remediation requested"
		}

		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.unsubscribe()
		m.poller.Stop()

		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		m.notice = ""
		m.poller.Trigger(m.ctx)

		return m, nil
	case key.Matches(msg, m.keys.Remediate):
		if !m.remediationOffered() {
			return m, nil
		}

		m.notice = ""
		ctx, remediator := m.ctx, m.remediator

		return m, func() tea.Msg {
			return RemediationDoneMsg{Err: remediator.Emit(ctx)}
		}
	}

	return m, nil
}

const detailIndent = 2

// fit truncates line by terminal cell width so that it stays on one row after
// indent columns of padding. Before the first WindowSizeMsg nothing is cut.
func (m *Model) fit(line string, indent int) string {
	if m.width <= 0 {
		return line
	}

	limit := m.width - indent
	if limit <= 0 {
		return ""
	}

	return runewidth.Truncate(line, limit, "…")
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	d := m.display()

	var b strings.Builder

	indicator := StateStyle(d.State).Render(d.Label)
	if d.State == status.StateChecking {
		indicator = m.spinner.View() + " " + indicator
	}

	fmt.Fprintf(&b, "Claude Code  %s\n\n", indicator)

	for _, line := range d.Details {
		b.WriteString(detailStyle.Render(m.fit(line, detailIndent)))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")

	return b.String()
}
