// Package config handles claudewatch configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (CLAUDEWATCH_*)
//  2. Config file (<user config dir>/claudewatch/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/musher-dev/claudewatch/internal/paths"
)

const (
	// DefaultClaudePath is the Claude CLI looked up on PATH.
	DefaultClaudePath = "claude"
	// DefaultCommitPolicy keeps the result of whichever refresh finishes last.
	DefaultCommitPolicy = "last-completed"
)

// Keys understood by claudewatch.
const (
	KeyClaudePath        = "claude.path"
	KeyClaudeConfigDir   = "claude.config_dir"
	KeyCommitPolicy      = "status.commit_policy"
	KeyRemediationCmd    = "remediation.command"
	envPrefix            = "CLAUDEWATCH"
	configFileNameNoExt  = "config"
	configFileType       = "yaml"
	configDirPermissions = 0o700
)

// Config holds the claudewatch configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources.
func Load() *Config {
	v := viper.New()

	v.SetDefault(KeyClaudePath, DefaultClaudePath)
	v.SetDefault(KeyCommitPolicy, DefaultCommitPolicy)

	if root, err := paths.ConfigRoot(); err == nil {
		v.AddConfigPath(root)
		v.SetConfigName(configFileNameNoExt)
		v.SetConfigType(configFileType)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found, but warn on other errors)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: error reading config file: %v\n", err)
		}
	}

	return &Config{v: v}
}

// Get returns a configuration value.
func (c *Config) Get(key string) interface{} {
	return c.v.Get(key)
}

// GetString returns a configuration value as string.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// Set sets a configuration value and persists it.
func (c *Config) Set(key string, value interface{}) error {
	c.v.Set(key, value)

	configFile, err := paths.ConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), configDirPermissions); err != nil {
		return err
	}

	return c.v.WriteConfigAs(configFile)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// ClaudePath returns the Claude CLI binary name or path.
func (c *Config) ClaudePath() string {
	if p := strings.TrimSpace(c.GetString(KeyClaudePath)); p != "" {
		return p
	}

	return DefaultClaudePath
}

// ClaudeConfigDir returns the Claude Code configuration directory, falling
// back to $CLAUDE_CONFIG_DIR or ~/.claude.
func (c *Config) ClaudeConfigDir() (string, error) {
	if dir := strings.TrimSpace(c.GetString(KeyClaudeConfigDir)); dir != "" {
		return filepath.Clean(dir), nil
	}

	return paths.ClaudeConfigDir()
}

// CommitPolicy returns the raw status.commit_policy value.
func (c *Config) CommitPolicy() string {
	return strings.ToLower(strings.TrimSpace(c.GetString(KeyCommitPolicy)))
}

// RemediationCommand returns the command run when remediation is requested,
// split into argv. Empty when unset.
func (c *Config) RemediationCommand() []string {
	return strings.Fields(c.GetString(KeyRemediationCmd))
}
