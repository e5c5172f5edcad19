// Package errors provides structured CLI error types for claudewatch.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess      = 0  // Successful execution
	ExitGeneral      = 1  // General error
	ExitAuth         = 2  // Claude Code is installed but not authenticated
	ExitNotInstalled = 3  // Claude Code is missing or could not be probed
	ExitConfig       = 4  // Configuration error
	ExitRemediation  = 5  // Remediation command failed
	ExitUsage        = 64 // Command line usage error (BSD convention)
)

// installHint is shown wherever Claude Code needs to be installed or located.
const installHint = "Install Claude Code (https://docs.anthropic.com/en/docs/claude-code) or set claude.path"

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// ClaudeNotInstalled returns an error when the Claude CLI was not found or
// could not be probed. detail is the probe output, if any.
func ClaudeNotInstalled(detail string) *CLIError {
	hint := installHint
	if detail = strings.TrimSpace(detail); detail != "" {
		hint = fmt.Sprintf("%s. %s", detail, installHint)
	}

	return &CLIError{
		Message: "Claude Code not found",
		Hint:    hint,
		Code:    ExitNotInstalled,
	}
}

// ClaudeAuthRequired returns an error when Claude Code has no usable
// credentials.
func ClaudeAuthRequired(detail string) *CLIError {
	hint := "Run 'claude' and use /login, or set ANTHROPIC_API_KEY"
	if detail = strings.TrimSpace(detail); detail != "" {
		hint = fmt.Sprintf("%s. %s", detail, hint)
	}

	return &CLIError{
		Message: "Claude Code needs authentication",
		Hint:    hint,
		Code:    ExitAuth,
	}
}

// StatusUnknown returns an error when no status record is available yet.
func StatusUnknown() *CLIError {
	return &CLIError{
		Message: "Claude Code status unknown",
		Hint:    "Run 'claudewatch status' again",
		Code:    ExitGeneral,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return Wrap(ExitConfig, fmt.Sprintf("Failed to %s", operation), cause).
		WithHint("Check file permissions for your claudewatch config directory")
}

// InvalidCommitPolicy returns an error for an unknown status.commit_policy.
func InvalidCommitPolicy(value string, allowed []string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid status.commit_policy: %q", value),
		Hint:    fmt.Sprintf("Allowed values: %s", strings.Join(allowed, ", ")),
		Code:    ExitConfig,
	}
}

// RemediationFailed returns an error when the configured remediation command
// exits unsuccessfully.
func RemediationFailed(command string, cause error) *CLIError {
	return Wrap(ExitRemediation, fmt.Sprintf("Remediation command failed: %s", command), cause).
		WithHint("Check remediation.command with 'claudewatch config get remediation.command'")
}
