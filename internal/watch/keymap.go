package watch

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the watch view keybindings.
type KeyMap struct {
	Refresh   key.Binding
	Remediate key.Binding
	Quit      key.Binding
}

// DefaultKeyMap is the keymap used by New.
var DefaultKeyMap = KeyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Remediate: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "fix"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Remediate, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
