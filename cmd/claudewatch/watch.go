package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/config"
	"github.com/musher-dev/claudewatch/internal/output"
	"github.com/musher-dev/claudewatch/internal/status"
	"github.com/musher-dev/claudewatch/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live Claude Code status indicator",
		Long: `Check Claude Code immediately and then every five minutes, showing the
current status as a live indicator. A change to the Claude credentials file
triggers an extra check. Press r to check again, c to run the
offered fix, and q to quit. Without a terminal, or with --plain, one line is
printed per completed check instead.`,
		Example: `  claudewatch watch
  claudewatch watch --plain
  claudewatch watch --json | jq .state`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := output.FromContext(ctx)
			cfg := config.Load()

			poller, err := newPoller(ctx, cfg)
			if err != nil {
				return err
			}
			defer poller.Stop()

			watchCredentials(ctx, cfg, poller)

			if plain || out.Structured() || !out.Terminal().InteractiveEnabled() {
				return runPlainWatch(ctx, out, poller)
			}

			listener := &remediationListener{
				out:     out,
				command: cfg.RemediationCommand(),
				quiet:   true,
			}
			listener.display = func() status.Display { return poller.Snapshot().Display() }

			model := watch.New(ctx, poller, newDispatcher(listener))
			poller.Start(ctx)

			_, err = tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(out.Out)).Run()
			if err != nil && ctx.Err() == nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Print one line per check instead of a live view")

	return cmd
}

// runPlainWatch starts poller and prints every committed status until ctx is
// done.
func runPlainWatch(ctx context.Context, out *output.Writer, poller *status.Poller) error {
	updates := make(chan status.Snapshot, 8)

	unsubscribe := poller.Subscribe(func(s status.Snapshot) {
		if s.Checking {
			return
		}

		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	if !out.Structured() {
		out.Muted("Checking Claude Code every %s (Ctrl+C to stop)", poller.Interval())
	}

	poller.Start(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if err := printWatchLine(out, snap); err != nil {
				return err
			}
		}
	}
}

func printWatchLine(out *output.Writer, snap status.Snapshot) error {
	if out.Structured() {
		return out.PrintStructured(newStatusReport(snap))
	}

	d := snap.Display()

	at := snap.LastAttemptAt
	if snap.Record != nil && !snap.Record.CheckedAt.IsZero() {
		at = snap.Record.CheckedAt
	}

	out.Status(toneFor(d.State), "%s  %s", at.Local().Format(time.TimeOnly), d.Summary)

	return nil
}
