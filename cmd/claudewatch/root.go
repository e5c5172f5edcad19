package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierrors "github.com/musher-dev/claudewatch/internal/errors"
	"github.com/musher-dev/claudewatch/internal/observability"
	"github.com/musher-dev/claudewatch/internal/output"
)

const telemetryShutdownTimeout = 5 * time.Second

// app is one CLI invocation: the command tree plus what must be released
// when it finishes.
type app struct {
	root    *cobra.Command
	out     *output.Writer
	flags   rootFlags
	cleanup cleanupStack
}

func newRootCmd() *cobra.Command {
	return newApp().root
}

func newApp() *app {
	a := &app{out: output.Default()}

	root := &cobra.Command{
		Use:   "claudewatch",
		Short: "Watch whether Claude Code is installed and signed in",
		Long: `claudewatch checks that the Claude Code CLI is installed and authenticated.
It runs an installation probe and an authentication probe together, merges
their results into one status record, and offers a fix when Claude Code is
missing or signed out.

Get started:
  claudewatch status      Check once and print the result
  claudewatch watch       Keep a live indicator open
  claudewatch remediate   Run the configured fix when Claude Code is unusable`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	a.flags.register(root.PersistentFlags())
	root.SuggestionsMinimumDistance = 2

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return clierrors.New(clierrors.ExitUsage, err.Error()).
			WithHint(fmt.Sprintf("Run '%s --help' for available flags", cmd.CommandPath()))
	})

	root.AddCommand(
		newStatusCmd(),
		newWatchCmd(),
		newRemediateCmd(),
		newConfigCmd(),
		newVersionCmd(),
		newCompletionCmd(),
	)

	a.root = root

	return a
}

// rootFlags are the persistent flags shared by every command. Each one can
// also be set through its CLAUDEWATCH_* environment variable.
type rootFlags struct {
	json      bool
	yaml      bool
	quiet     bool
	noColor   bool
	logLevel  string
	logFormat string
	logFile   string
	logStderr string
}

func (f *rootFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.json, "json", false, "Output in JSON format")
	fs.BoolVar(&f.yaml, "yaml", false, "Output in YAML format")
	fs.BoolVar(&f.quiet, "quiet", false, "Minimal output (for CI)")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: error, warn, info, debug")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json, text")
	fs.StringVar(&f.logFile, "log-file", "", "Optional structured log file path")
	fs.StringVar(&f.logStderr, "log-stderr", "", "Structured logging to stderr: auto, on, off")
}

// setup runs before every command: it applies the output flags and attaches
// the writer, the logger and tracing to the command context.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.applyOutput(); err != nil {
		return err
	}

	ctx := a.out.WithContext(cmd.Context())

	logger, err := a.setupLogging(cmd)
	if err != nil {
		return err
	}

	ctx = observability.WithLogger(ctx, logger)
	a.setupTelemetry(ctx, logger)
	cmd.SetContext(ctx)

	return nil
}

func (a *app) applyOutput() error {
	a.out.JSON = envBool(a.flags.json, "CLAUDEWATCH_JSON")
	a.out.YAML = envBool(a.flags.yaml, "CLAUDEWATCH_YAML")
	a.out.Quiet = envBool(a.flags.quiet, "CLAUDEWATCH_QUIET")

	if a.out.JSON && a.out.YAML {
		return clierrors.New(clierrors.ExitUsage, "JSON and YAML output cannot be combined").
			WithHint("Pick one of --json or --yaml (or CLAUDEWATCH_JSON / CLAUDEWATCH_YAML)")
	}

	if a.flags.noColor {
		a.out.SetNoColor(true)
		color.NoColor = true
	}

	return nil
}

func (a *app) setupLogging(cmd *cobra.Command) (*slog.Logger, error) {
	path := cmd.CommandPath()

	cfg := observability.Config{
		Level:          envString(a.flags.logLevel, "CLAUDEWATCH_LOG_LEVEL", "info"),
		Format:         envString(a.flags.logFormat, "CLAUDEWATCH_LOG_FORMAT", "json"),
		LogFile:        envString(a.flags.logFile, "CLAUDEWATCH_LOG_FILE", ""),
		StderrMode:     envString(a.flags.logStderr, "CLAUDEWATCH_LOG_STDERR", "auto"),
		InteractiveTTY: a.out.Terminal().IsTTY && drawsFullScreen(path),
		SessionID:      uuid.NewString(),
		CommandPath:    path,
		Version:        version,
		Commit:         commit,
	}

	logger, closeLogs, err := observability.NewLogger(&cfg)
	if err != nil {
		return nil, clierrors.Wrap(clierrors.ExitUsage, fmt.Sprintf("Invalid logging configuration: %v", err), err).
			WithHint("Use --log-level (error|warn|info|debug), --log-format (json|text), --log-stderr (auto|on|off), and/or --log-file")
	}

	previous := slog.Default()
	slog.SetDefault(logger)
	a.cleanup.push("logger resources", func() error {
		slog.SetDefault(previous)
		return closeLogs()
	})

	return logger, nil
}

// setupTelemetry installs the OTLP tracer provider when OTEL_ENABLED is set.
// A failure only costs the traces, so it is logged rather than returned.
func (a *app) setupTelemetry(ctx context.Context, logger *slog.Logger) {
	shutdown, err := observability.SetupTelemetry(ctx, &observability.TelemetryConfig{
		Enabled: observability.IsTelemetryEnabled(),
		Version: version,
		Commit:  commit,
	})
	if err != nil {
		logger.Warn("telemetry initialization failed", slog.String("error", err.Error()))
	}

	if shutdown == nil {
		return
	}

	a.cleanup.push("telemetry resources", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()

		return shutdown(ctx)
	})
}

// drawsFullScreen reports whether the command owns the terminal, in which
// case logs must stay off stderr.
func drawsFullScreen(path string) bool {
	return path == "claudewatch watch"
}

type namedCleanup struct {
	name string
	fn   func() error
}

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack struct {
	entries []namedCleanup
}

func (s *cleanupStack) push(name string, fn func() error) {
	if fn != nil {
		s.entries = append(s.entries, namedCleanup{name: name, fn: fn})
	}
}

// run calls every cleanup once, newest first, and joins their errors. The
// stack is empty afterwards.
func (s *cleanupStack) run() error {
	entries := slices.Clone(s.entries)
	s.entries = nil

	var errs []error

	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", entries[i].name, err))
		}
	}

	return errors.Join(errs...)
}

func envBool(flag bool, key string) bool {
	if flag {
		return true
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func envString(flag, key, fallback string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}

	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return fallback
}
