// Package main is the entry point for the claudewatch CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/buildinfo"
	clierrors "github.com/musher-dev/claudewatch/internal/errors"
	"github.com/musher-dev/claudewatch/internal/output"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// The spinner and the watch view hide the cursor; show it again on panic.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprint(os.Stderr, "\033[?25h")
			panic(r)
		}
	}()

	buildinfo.Version = version
	buildinfo.Commit = commit

	a := newApp()
	err := a.root.Execute()

	if cleanupErr := a.cleanup.run(); cleanupErr != nil {
		err = errors.Join(err, cleanupErr)
	}

	if err != nil {
		return handleError(a.out, err)
	}

	return clierrors.ExitSuccess
}

// usageErrorPrefixes are the cobra error messages that mean the command line
// itself was wrong.
var usageErrorPrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"required flag",
	"invalid argument",
}

// handleError prints err and returns the exit code for it.
func handleError(out *output.Writer, err error) int {
	var cliErr *clierrors.CLIError
	if clierrors.As(err, &cliErr) {
		out.Failure("%s", cliErr.Message)

		if cliErr.Hint != "" {
			out.Info("%s", cliErr.Hint)
		}

		return cliErr.Code
	}

	msg := err.Error()
	out.Failure("%s", msg)

	for _, prefix := range usageErrorPrefixes {
		if strings.HasPrefix(msg, prefix) {
			if !strings.Contains(msg, "--help") {
				out.Info("Run 'claudewatch --help' for usage")
			}

			return clierrors.ExitUsage
		}
	}

	return clierrors.ExitGeneral
}

// noArgs rejects positional arguments with a usage error. cobra.NoArgs would
// report them as an unknown command.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}

	return clierrors.New(clierrors.ExitUsage, fmt.Sprintf("'%s' accepts no arguments", cmd.CommandPath())).
		WithHint(fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()))
}
