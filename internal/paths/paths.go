// Package paths resolves the on-disk locations used by claudewatch and the
// Claude Code installation it monitors.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "claudewatch"

// claudeConfigDirEnv overrides the Claude Code configuration directory, the
// same way the Claude CLI itself honors it.
const claudeConfigDirEnv = "CLAUDE_CONFIG_DIR"

func configRoot() (string, error) {
	return rootWithFallback("XDG_CONFIG_HOME", os.UserConfigDir, ".config")
}

func stateRoot() (string, error) {
	noOSDefault := func() (string, error) {
		return "", fmt.Errorf("no OS state directory function")
	}

	return rootWithFallback("XDG_STATE_HOME", noOSDefault, filepath.Join(".local", "state"))
}

func rootWithFallback(xdgEnv string, osFn func() (string, error), fallbackDir string) (string, error) {
	// Priority 1: explicit XDG env var (cross-platform).
	if xdg := os.Getenv(xdgEnv); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, appName), nil
	}

	// Priority 2: OS-specific default.
	root, err := osFn()
	if err == nil && root != "" {
		return filepath.Join(root, appName), nil
	}

	// Priority 3: home-dir fallback.
	home, homeErr := os.UserHomeDir()
	if homeErr == nil && home != "" {
		return filepath.Join(home, fallbackDir, appName), nil
	}

	if err != nil {
		return "", err
	}

	return "", fmt.Errorf("resolve user home directory")
}

// ConfigRoot returns the user config root directory for claudewatch.
func ConfigRoot() (string, error) {
	return configRoot()
}

// StateRoot returns the user state root directory for claudewatch.
func StateRoot() (string, error) {
	return stateRoot()
}

// ConfigFile returns the path of the YAML config file.
func ConfigFile() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, "config.yaml"), nil
}

// LogsDir returns the default log directory.
func LogsDir() (string, error) {
	root, err := stateRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, "logs"), nil
}

// DefaultLogFile returns the default log file path.
func DefaultLogFile() (string, error) {
	logsDir, err := LogsDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(logsDir, appName+".log"), nil
}

// ClaudeConfigDir returns the Claude Code configuration directory:
// $CLAUDE_CONFIG_DIR when set, otherwise ~/.claude.
func ClaudeConfigDir() (string, error) {
	if dir := os.Getenv(claudeConfigDirEnv); dir != "" {
		return filepath.Clean(dir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home directory: %w", err)
	}

	return filepath.Join(home, ".claude"), nil
}

// ClaudeCredentialsFile returns the credentials file Claude Code writes after
// an OAuth login, inside dir.
func ClaudeCredentialsFile(dir string) string {
	return filepath.Join(dir, ".credentials.json")
}
