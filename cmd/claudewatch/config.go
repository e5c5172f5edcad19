package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/musher-dev/claudewatch/internal/config"
	clierrors "github.com/musher-dev/claudewatch/internal/errors"
	"github.com/musher-dev/claudewatch/internal/output"
	"github.com/musher-dev/claudewatch/internal/paths"
	"github.com/musher-dev/claudewatch/internal/status"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify claudewatch configuration settings.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display all configuration settings and their current values, including built-in defaults.`,
		Example: `  claudewatch config list
  claudewatch config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			settings := flatten("", config.Load().All())

			if out.Structured() {
				return out.PrintStructured(settings)
			}

			keys := make([]string, 0, len(settings))
			for key := range settings {
				keys = append(keys, key)
			}

			sort.Strings(keys)

			for _, key := range keys {
				out.Print("%s = %v\n", key, settings[key])
			}

			var unset []string

			for _, opt := range optionalSettings {
				if _, ok := settings[opt.key]; !ok {
					unset = append(unset, fmt.Sprintf("  %-20s %s", opt.key, opt.help))
				}
			}

			if len(unset) > 0 {
				out.Println()
				out.Println("Available settings:")

				for _, line := range unset {
					out.Println(line)
				}
			}

			return nil
		},
	}
}

// optionalSettings are keys without a built-in default, listed by config list
// while unset.
var optionalSettings = []struct {
	key  string
	help string
}{
	{config.KeyClaudeConfigDir, "Claude Code configuration directory (default: $CLAUDE_CONFIG_DIR or ~/.claude)"},
	{config.KeyRemediationCmd, "Command run by 'claudewatch remediate' (default: none)"},
}

// knownSettings are the keys claudewatch reads.
var knownSettings = map[string]bool{
	config.KeyClaudePath:      true,
	config.KeyClaudeConfigDir: true,
	config.KeyCommitPolicy:    true,
	config.KeyRemediationCmd:  true,
}

// flatten turns Viper's nested settings map into dotted keys.
func flatten(prefix string, settings map[string]any) map[string]any {
	flat := make(map[string]any, len(settings))

	for key, value := range settings {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				flat[k] = v
			}

			continue
		}

		flat[full] = value
	}

	return flat
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  claudewatch config get claude.path`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]
			value := config.Load().Get(key)

			if out.Structured() {
				return out.PrintStructured(map[string]any{key: value})
			}

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration key to the given value. The value is persisted to the config file.`,
		Example: `  claudewatch config set claude.path /opt/claude/bin/claude
  claudewatch config set status.commit_policy latest-initiated`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]

			if key == config.KeyCommitPolicy {
				if _, err := status.ParseCommitPolicy(value); err != nil {
					return clierrors.InvalidCommitPolicy(value, status.CommitPolicyNames())
				}
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			file := "config file"
			if resolved, err := paths.ConfigFile(); err == nil {
				file = resolved
			}

			out.Success("Set %s = %s", key, value)
			out.Muted("Saved to %s", file)

			if !knownSettings[key] {
				out.Warning("%s is not a claudewatch setting and will be ignored", key)
			}

			return nil
		},
	}
}
