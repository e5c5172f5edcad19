package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/musher-dev/claudewatch/internal/config"
	"github.com/musher-dev/claudewatch/internal/credwatch"
	clierrors "github.com/musher-dev/claudewatch/internal/errors"
	"github.com/musher-dev/claudewatch/internal/observability"
	"github.com/musher-dev/claudewatch/internal/output"
	"github.com/musher-dev/claudewatch/internal/probe"
	"github.com/musher-dev/claudewatch/internal/remediation"
	"github.com/musher-dev/claudewatch/internal/status"
)

// newProbeClient builds the probe client from configuration. Tests replace it.
var newProbeClient = func(cfg *config.Config) (probe.Client, error) {
	dir, err := cfg.ClaudeConfigDir()
	if err != nil {
		dir = ""
	}

	return probe.NewCLIClient(cfg.ClaudePath(), dir), nil
}

// newPoller wires a status poller to the configured probe client and commit
// policy.
//
// This consolidates the pattern shared by status, watch and remediate:
//
//	cfg := config.Load()
//	client := probe.NewCLIClient(cfg.ClaudePath(), dir)
//	p := status.NewPoller(client, status.WithCommitPolicy(...))
func newPoller(ctx context.Context, cfg *config.Config, opts ...status.Option) (*status.Poller, error) {
	policy, err := status.ParseCommitPolicy(cfg.CommitPolicy())
	if err != nil {
		return nil, clierrors.InvalidCommitPolicy(cfg.CommitPolicy(), status.CommitPolicyNames())
	}

	client, err := newProbeClient(cfg)
	if err != nil {
		return nil, err
	}

	base := []status.Option{
		status.WithLogger(observability.FromContext(ctx)),
		status.WithCommitPolicy(policy),
	}

	return status.NewPoller(client, append(base, opts...)...), nil
}

// watchCredentials triggers an out-of-cycle refresh whenever Claude Code
// rewrites its credentials file, until ctx is done. A missing config
// directory only disables the shortcut; the scheduled refreshes still run.
func watchCredentials(ctx context.Context, cfg *config.Config, poller *status.Poller) {
	logger := observability.FromContext(ctx)

	dir, err := cfg.ClaudeConfigDir()
	if err != nil {
		logger.Debug("credentials watch disabled", slog.String("error", err.Error()))
		return
	}

	w, err := credwatch.New(dir, func() { poller.Trigger(ctx) }, credwatch.WithLogger(logger))
	if err != nil {
		logger.Debug("credentials watch disabled",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)

		return
	}

	go w.Run(ctx)
}

// remediationListener is the CLI's handler for the remediation signal. It
// prints the fix for the current state and, when remediation.command is
// configured, runs it.
type remediationListener struct {
	out     *output.Writer
	command []string
	display func() status.Display
	// quiet runs the command without attaching it to the terminal.
	quiet bool
}

// runCommand executes argv. Tests replace it.
var runCommand = func(ctx context.Context, argv []string, attach bool) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // command comes from the user's own config
	if attach {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	return cmd.Run()
}

func (l *remediationListener) handle(ctx context.Context) error {
	d := l.display()

	var hint string

	switch d.State {
	case status.StateAuthRequired:
		hint = clierrors.ClaudeAuthRequired("").Hint
	default:
		hint = clierrors.ClaudeNotInstalled("").Hint
	}

	if len(l.command) == 0 {
		if !l.quiet {
			l.out.Info("%s", hint)
		}

		return nil
	}

	joined := strings.Join(l.command, " ")
	observability.FromContext(ctx).Info("running remediation command",
		slog.String("command", joined),
		slog.String("state", d.State.String()),
	)

	if !l.quiet {
		l.out.Info("Running %s", joined)
	}

	if err := runCommand(ctx, l.command, !l.quiet); err != nil {
		return clierrors.RemediationFailed(joined, err)
	}

	return nil
}

// newDispatcher returns a dispatcher with the CLI listener subscribed.
func newDispatcher(l *remediationListener) *remediation.Dispatcher {
	d := remediation.New()
	d.Subscribe(l.handle)

	return d
}
