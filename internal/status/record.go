// Package status owns the Claude Code status record: it runs the version and
// auth probes together, commits their merged result atomically, and derives
// the display state shown to the user.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/musher-dev/claudewatch/internal/probe"
)

// DefaultInterval is the fixed period between scheduled refreshes.
const DefaultInterval = 5 * time.Minute

// Texts of the record committed when either probe fails.
const (
	FallbackVersionOutput = "Failed to check Claude status"
	FallbackAuthDetails   = "Failed to check authentication status"
)

// Record is the merged result of one completed refresh. A committed Record is
// never modified; later refreshes replace it as a whole.
type Record struct {
	Version   probe.VersionStatus `json:"version" yaml:"version"`
	Auth      probe.AuthStatus    `json:"auth" yaml:"auth"`
	CheckedAt time.Time           `json:"checked_at" yaml:"checked_at"`
}

// FallbackRecord is committed in place of probe results whenever either probe
// fails, so a trusted and an untrusted result are never mixed.
func FallbackRecord(at time.Time) *Record {
	return &Record{
		Version: probe.VersionStatus{
			IsInstalled: false,
			Output:      FallbackVersionOutput,
		},
		Auth: probe.AuthStatus{
			IsAuthenticated: false,
			AuthDetails:     FallbackAuthDetails,
		},
		CheckedAt: at,
	}
}

// Snapshot is a consistent view of the poller state.
type Snapshot struct {
	Checking      bool      `json:"checking" yaml:"checking"`
	Record        *Record   `json:"record,omitempty" yaml:"record,omitempty"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero" yaml:"last_attempt_at,omitempty"`
}

// Display derives the display state of the snapshot.
func (s Snapshot) Display() Display {
	return Derive(s.Checking, s.Record)
}

// CommitPolicy decides which of several overlapping refreshes is kept.
type CommitPolicy int

const (
	// CommitLastCompleted keeps whichever refresh finishes last, regardless
	// of which one started first.
	CommitLastCompleted CommitPolicy = iota
	// CommitLatestInitiated keeps only the most recently started refresh and
	// discards results from the ones it superseded.
	CommitLatestInitiated
)

var commitPolicyNames = map[CommitPolicy]string{
	CommitLastCompleted:   "last-completed",
	CommitLatestInitiated: "latest-initiated",
}

// String returns the config name of the policy.
func (c CommitPolicy) String() string {
	if name, ok := commitPolicyNames[c]; ok {
		return name
	}

	return fmt.Sprintf("CommitPolicy(%d)", int(c))
}

// CommitPolicyNames lists the accepted config values.
func CommitPolicyNames() []string {
	return []string{CommitLastCompleted.String(), CommitLatestInitiated.String()}
}

// ParseCommitPolicy parses a status.commit_policy value. Empty means the
// default, CommitLastCompleted.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-completed":
		return CommitLastCompleted, nil
	case "latest-initiated":
		return CommitLatestInitiated, nil
	default:
		return CommitLastCompleted, fmt.Errorf("unknown commit policy %q", s)
	}
}
