package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/zalando/go-keyring"

	"github.com/musher-dev/claudewatch/internal/paths"
)

const (
	envAPIKey     = "ANTHROPIC_API_KEY"
	envOAuthToken = "CLAUDE_CODE_OAUTH_TOKEN"

	// keyringService is the macOS keychain entry Claude Code stores its OAuth
	// credentials under.
	keyringService = "Claude Code-credentials"
)

// versionPattern matches the first semver-looking token of `claude --version`,
// e.g. "1.0.17 (Claude Code)".
var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?`)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLIClient probes a local Claude Code installation: the CLI binary for the
// version probe, and environment variables, the credentials file and the OS
// keyring for the auth probe.
type CLIClient struct {
	// Path is the Claude CLI binary name or path.
	Path string
	// ConfigDir is the Claude Code configuration directory.
	ConfigDir string

	LookPath   func(file string) (string, error)
	Run        Runner
	Getenv     func(key string) string
	ReadFile   func(name string) ([]byte, error)
	KeyringGet func(service, user string) (string, error)
	Now        func() time.Time
}

// NewCLIClient returns a CLIClient wired to the real environment.
func NewCLIClient(path, configDir string) *CLIClient {
	return &CLIClient{
		Path:       path,
		ConfigDir:  configDir,
		LookPath:   exec.LookPath,
		Run:        runCommand,
		Getenv:     os.Getenv,
		ReadFile:   os.ReadFile,
		KeyringGet: keyring.Get,
		Now:        time.Now,
	}
}

// CheckVersion reports whether the Claude CLI is installed and which version
// it reports.
func (c *CLIClient) CheckVersion(ctx context.Context) (VersionStatus, error) {
	name := c.Path
	if name == "" {
		name = "claude"
	}

	resolved, err := c.LookPath(name)
	if err != nil {
		return VersionStatus{
			IsInstalled: false,
			Output:      fmt.Sprintf("%s not found in PATH", name),
		}, nil
	}

	out, err := c.Run(ctx, resolved, "--version")
	if err != nil {
		return VersionStatus{}, &Error{Probe: NameVersion, Op: "run " + name + " --version", Err: err}
	}

	output := strings.TrimSpace(string(out))

	return VersionStatus{
		IsInstalled: true,
		Version:     ParseVersion(output),
		Output:      output,
	}, nil
}

// ParseVersion extracts the first semantic version from output and returns
// it in canonical form, or "" when none is present.
func ParseVersion(output string) string {
	match := versionPattern.FindString(output)
	if match == "" {
		return ""
	}

	v, err := semver.NewVersion(match)
	if err != nil {
		return ""
	}

	return v.String()
}

// CheckAuth reports whether Claude Code has usable credentials. Sources are
// consulted in order: ANTHROPIC_API_KEY, CLAUDE_CODE_OAUTH_TOKEN, the
// credentials file and the OS keyring.
func (c *CLIClient) CheckAuth(_ context.Context) (AuthStatus, error) {
	for _, key := range []string{envAPIKey, envOAuthToken} {
		if strings.TrimSpace(c.Getenv(key)) != "" {
			return AuthStatus{
				IsAuthenticated: true,
				AuthDetails:     "Authenticated via " + key,
			}, nil
		}
	}

	if status, found, err := c.fromCredentialsFile(); err != nil || found {
		return status, err
	}

	if status, found, err := c.fromKeyring(); err != nil || found {
		return status, err
	}

	return AuthStatus{
		IsAuthenticated: false,
		AuthDetails:     "No Claude credentials found",
	}, nil
}

func (c *CLIClient) fromCredentialsFile() (AuthStatus, bool, error) {
	dir := c.ConfigDir
	if dir == "" {
		resolved, err := paths.ClaudeConfigDir()
		if err != nil {
			return AuthStatus{}, false, nil //nolint:nilerr // no home directory means no credentials file
		}

		dir = resolved
	}

	path := paths.ClaudeCredentialsFile(dir)

	data, err := c.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AuthStatus{}, false, nil
		}

		return AuthStatus{}, false, &Error{Probe: NameAuth, Op: "read credentials file", Err: err}
	}

	return c.evaluateCredentials(data, "credentials file")
}

func (c *CLIClient) fromKeyring() (AuthStatus, bool, error) {
	if c.KeyringGet == nil {
		return AuthStatus{}, false, nil
	}

	secret, err := c.KeyringGet(keyringService, c.Getenv("USER"))
	if err != nil {
		// Missing entries and platforms without a secret service both mean
		// "no credentials here".
		return AuthStatus{}, false, nil
	}

	return c.evaluateCredentials([]byte(secret), "keyring")
}

// storedCredentials is the JSON document Claude Code persists after an OAuth
// login.
type storedCredentials struct {
	ClaudeAiOauth *struct {
		AccessToken      string `json:"accessToken"`
		ExpiresAt        int64  `json:"expiresAt"`
		SubscriptionType string `json:"subscriptionType"`
	} `json:"claudeAiOauth"`
}

func (c *CLIClient) evaluateCredentials(data []byte, source string) (AuthStatus, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return AuthStatus{}, false, nil
	}

	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return AuthStatus{}, false, &Error{Probe: NameAuth, Op: "parse " + source, Err: err}
	}

	oauth := creds.ClaudeAiOauth
	if oauth == nil || strings.TrimSpace(oauth.AccessToken) == "" {
		return AuthStatus{}, false, nil
	}

	if oauth.ExpiresAt > 0 {
		expiresAt := time.UnixMilli(oauth.ExpiresAt)
		if !c.Now().Before(expiresAt) {
			return AuthStatus{
				IsAuthenticated: false,
				AuthDetails:     fmt.Sprintf("OAuth token expired at %s", expiresAt.Local().Format(time.RFC3339)),
			}, true, nil
		}
	}

	details := "Logged in with Claude account (" + source + ")"
	if plan := strings.TrimSpace(oauth.SubscriptionType); plan != "" {
		details = fmt.Sprintf("Logged in with Claude %s account (%s)", plan, source)
	}

	return AuthStatus{IsAuthenticated: true, AuthDetails: details}, true, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}

		return nil, err
	}

	return out, nil
}
