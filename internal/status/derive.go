package status

import (
	"fmt"
	"time"
)

// DisplayState is the discrete indicator state derived from the poller state.
type DisplayState int

const (
	StateChecking DisplayState = iota
	StateUnknown
	StateNotInstalled
	StateAuthRequired
	StateReady
)

var displayStateNames = map[DisplayState]string{
	StateChecking:     "CHECKING",
	StateUnknown:      "UNKNOWN",
	StateNotInstalled: "NOT_INSTALLED",
	StateAuthRequired: "AUTH_REQUIRED",
	StateReady:        "READY",
}

func (s DisplayState) String() string {
	if name, ok := displayStateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("DisplayState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s DisplayState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DisplayState) UnmarshalText(text []byte) error {
	for state, name := range displayStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}

	return fmt.Errorf("unknown display state %q", text)
}

// Display is everything a host needs to render the indicator.
type Display struct {
	State   DisplayState `json:"state" yaml:"state"`
	Label   string       `json:"label" yaml:"label"`
	Summary string       `json:"summary" yaml:"summary"`
	// Details are the hover/detail lines: summary, auth details, probe output
	// and the last-checked time, skipping what is absent.
	Details          []string `json:"details" yaml:"details"`
	Remediable       bool     `json:"remediable" yaml:"remediable"`
	RemediationLabel string   `json:"remediation_label,omitempty" yaml:"remediation_label,omitempty"`
}

// Derive maps the poller state to a display state. Rules are evaluated in
// order and the first match wins; checking masks any record.
func Derive(checking bool, rec *Record) Display {
	switch {
	case checking:
		return Display{
			State:   StateChecking,
			Label:   "Checking…",
			Summary: "Checking Claude Code status...",
			Details: []string{"Checking Claude Code status..."},
		}
	case rec == nil:
		return Display{
			State:   StateUnknown,
			Label:   "Unknown",
			Summary: "Unknown Claude Code status",
			Details: []string{"Unknown Claude Code status"},
		}
	case !rec.Version.IsInstalled:
		return withDetails(Display{
			State:            StateNotInstalled,
			Label:            "Not Found",
			Summary:          "Claude Code not found",
			Remediable:       true,
			RemediationLabel: "Configure",
		}, rec)
	case !rec.Auth.IsAuthenticated:
		return withDetails(Display{
			State:            StateAuthRequired,
			Label:            "Auth Required",
			Summary:          "Claude Code needs authentication",
			Remediable:       true,
			RemediationLabel: "Authenticate",
		}, rec)
	default:
		d := Display{
			State:   StateReady,
			Label:   "Ready",
			Summary: "Claude Code is ready",
		}

		if v := rec.Version.Version; v != "" {
			d.Label += " (v" + v + ")"
			d.Summary += " (v" + v + ")"
		}

		return withDetails(d, rec)
	}
}

func withDetails(d Display, rec *Record) Display {
	d.Details = []string{d.Summary}

	if rec.Auth.AuthDetails != "" {
		d.Details = append(d.Details, rec.Auth.AuthDetails)
	}

	if rec.Version.Output != "" {
		d.Details = append(d.Details, rec.Version.Output)
	}

	if !rec.CheckedAt.IsZero() {
		d.Details = append(d.Details, "Last checked: "+rec.CheckedAt.Local().Format(time.TimeOnly))
	}

	return d
}

// OffersRemediation reports whether the remediation action should be shown.
// It needs both a remediable state and at least one registered handler.
func (d Display) OffersRemediation(handlerRegistered bool) bool {
	return d.Remediable && handlerRegistered
}
