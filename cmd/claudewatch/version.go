package main

import (
	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/output"
)

// VersionInfo is the structured output of the version command.
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Long:    `Display the claudewatch binary version, git commit, and build date.`,
		Example: `  claudewatch version`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			info := VersionInfo{Version: version, Commit: commit, Date: date}

			if out.Structured() {
				return out.PrintStructured(info)
			}

			out.Print("claudewatch %s\n", info.Version)
			out.Print("  commit: %s\n", info.Commit)
			out.Print("  built:  %s\n", info.Date)

			return nil
		},
	}
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate a shell completion script",
		Long: `Write a completion script for the given shell to stdout. Source it from
your shell profile to complete claudewatch commands and flags.`,
		Example: `  claudewatch completion bash > /etc/bash_completion.d/claudewatch
  claudewatch completion zsh > "${fpath[1]}/_claudewatch"`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: completionShells,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}
