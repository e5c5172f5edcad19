// Package probe defines the two independent status checks claudewatch runs
// against a Claude Code installation: installation/version and
// authentication.
//
// A probe that runs and observes "not installed" or "not authenticated"
// returns a result with a nil error. An error is reserved for the probe
// itself being unable to produce a trustworthy answer.
package probe

import (
	"context"
	"fmt"
)

// Probe names used in errors, logs and spans.
const (
	NameVersion = "version"
	NameAuth    = "auth"
)

// VersionStatus is the result of the installation/version probe.
type VersionStatus struct {
	IsInstalled bool   `json:"is_installed" yaml:"is_installed"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Output      string `json:"output" yaml:"output"`
}

// AuthStatus is the result of the authentication probe.
type AuthStatus struct {
	IsAuthenticated bool   `json:"is_authenticated" yaml:"is_authenticated"`
	AuthDetails     string `json:"auth_details,omitempty" yaml:"auth_details,omitempty"`
}

// Client runs both probes. Implementations must allow CheckVersion and
// CheckAuth to be called concurrently.
type Client interface {
	CheckVersion(ctx context.Context) (VersionStatus, error)
	CheckAuth(ctx context.Context) (AuthStatus, error)
}

// Error reports that a probe could not complete.
type Error struct {
	Probe string // NameVersion or NameAuth
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s probe: %s: %v", e.Probe, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Funcs adapts a pair of functions to Client. A nil function fails with an
// error when called.
type Funcs struct {
	Version func(ctx context.Context) (VersionStatus, error)
	Auth    func(ctx context.Context) (AuthStatus, error)
}

// CheckVersion implements Client.
func (f Funcs) CheckVersion(ctx context.Context) (VersionStatus, error) {
	if f.Version == nil {
		return VersionStatus{}, &Error{Probe: NameVersion, Op: "call", Err: errNotConfigured}
	}

	return f.Version(ctx)
}

// CheckAuth implements Client.
func (f Funcs) CheckAuth(ctx context.Context) (AuthStatus, error) {
	if f.Auth == nil {
		return AuthStatus{}, &Error{Probe: NameAuth, Op: "call", Err: errNotConfigured}
	}

	return f.Auth(ctx)
}

var errNotConfigured = fmt.Errorf("probe not configured")
