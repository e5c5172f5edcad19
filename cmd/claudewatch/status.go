package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/config"
	clierrors "github.com/musher-dev/claudewatch/internal/errors"
	"github.com/musher-dev/claudewatch/internal/output"
	"github.com/musher-dev/claudewatch/internal/status"
)

// StatusReport is the machine-readable form of a status check.
type StatusReport struct {
	State            status.DisplayState `json:"state" yaml:"state"`
	Label            string              `json:"label" yaml:"label"`
	Checking         bool                `json:"checking" yaml:"checking"`
	Record           *status.Record      `json:"record" yaml:"record"`
	LastAttemptAt    time.Time           `json:"last_attempt_at,omitzero" yaml:"last_attempt_at,omitempty"`
	Details          []string            `json:"details" yaml:"details"`
	Remediable       bool                `json:"remediable" yaml:"remediable"`
	RemediationLabel string              `json:"remediation_label,omitempty" yaml:"remediation_label,omitempty"`
}

func newStatusReport(snap status.Snapshot) StatusReport {
	d := snap.Display()

	return StatusReport{
		State:            d.State,
		Label:            d.Label,
		Checking:         snap.Checking,
		Record:           snap.Record,
		LastAttemptAt:    snap.LastAttemptAt,
		Details:          d.Details,
		Remediable:       d.Remediable,
		RemediationLabel: d.RemediationLabel,
	}
}

func newStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check Claude Code installation and authentication",
		Long: `Run the installation and authentication probes once and print the derived
status. With --check the exit code reflects the status: 0 when ready, 2 when
authentication is required, 3 when Claude Code is missing or could not be
probed.`,
		Example: `  claudewatch status
  claudewatch status --json
  claudewatch status --check --quiet`,
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

			if out.Structured() {
				if err := out.PrintStructured(newStatusReport(snap)); err != nil {
					return err
				}
			} else {
				// Offer the fix only if 'claudewatch remediate' would have a
				// listener to run it.
				remedy := newDispatcher(&remediationListener{
					out:     out,
					command: cfg.RemediationCommand(),
					display: snap.Display,
					quiet:   true,
				})
				renderStatus(out, snap.Display(), remedy.HasListeners())
			}

			if check {
				return checkError(snap)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Exit non-zero unless Claude Code is ready")

	return cmd
}

// toneFor maps a display state to its indicator tone.
func toneFor(state status.DisplayState) output.Tone {
	switch state {
	case status.StateReady:
		return output.ToneSuccess
	case status.StateNotInstalled:
		return output.ToneError
	default:
		return output.ToneWarning
	}
}

// renderStatus prints the indicator line and the detail lines under it.
func renderStatus(out *output.Writer, d status.Display, offerRemediation bool) {
	out.Status(toneFor(d.State), "Claude Code: %s", d.Label)

	for _, line := range d.Details {
		out.Muted("  %s", line)
	}

	if d.OffersRemediation(offerRemediation) {
		out.Println()
		out.Muted("Run 'claudewatch remediate' to %s", strings.ToLower(d.RemediationLabel))
	}
}

// checkError maps the snapshot to the CLIError whose exit code scripts test.
func checkError(snap status.Snapshot) error {
	d := snap.Display()

	switch d.State {
	case status.StateReady:
		return nil
	case status.StateNotInstalled:
		return clierrors.ClaudeNotInstalled(snap.Record.Version.Output)
	case status.StateAuthRequired:
		return clierrors.ClaudeAuthRequired(snap.Record.Auth.AuthDetails)
	default:
		return clierrors.StatusUnknown()
	}
}
