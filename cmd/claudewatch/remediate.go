package main

import (
	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/config"
	"github.com/musher-dev/claudewatch/internal/output"
)

func newRemediateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remediate",
		Short: "Fix a missing or signed-out Claude Code",
		Long: `Check Claude Code once and, when it is missing or not authenticated, emit the
claude-not-found remediation signal. claudewatch answers the signal by printing
the fix, or by running remediation.command when it is configured.`,
		Example: `  claudewatch remediate
  claudewatch config set remediation.command "npm install -g @anthropic-ai/claude-code"
  claudewatch remediate`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := output.FromContext(ctx)
			cfg := config.Load()

			poller, err := newPoller(ctx, cfg)
			if err != nil {
				return err
			}
			defer poller.Stop()

			spin := out.Spinner("Checking Claude Code")
			spin.Start()
			snap := poller.Refresh(ctx)
			spin.Stop()

			listener := &remediationListener{
				out:     out,
				command: cfg.RemediationCommand(),
				display: snap.Display,
				quiet:   out.Quiet || out.Structured(),
			}
			dispatcher := newDispatcher(listener)

			d := snap.Display()
			if !d.OffersRemediation(dispatcher.HasListeners()) {
				if out.Structured() {
					return out.PrintStructured(newStatusReport(snap))
				}

				out.Status(toneFor(d.State), "Claude Code: %s", d.Label)
				out.Muted("Nothing to fix")

				return nil
			}

			if !out.Structured() {
				renderStatus(out, d, false)
			}

			if err := dispatcher.Emit(ctx); err != nil {
				return err
			}

			if len(listener.command) == 0 {
				if out.Structured() {
					return out.PrintStructured(newStatusReport(snap))
				}

				return nil
			}

			// Report the state after the fix ran.
			recheck := out.Spinner("Re-checking Claude Code")
			recheck.Start()
			after := poller.Refresh(ctx)

			if out.Structured() {
				recheck.Stop()
				return out.PrintStructured(newStatusReport(after))
			}

			ad := after.Display()
			recheck.StopWith(toneFor(ad.State), "Claude Code: "+ad.Label)

			return nil
		},
	}
}
