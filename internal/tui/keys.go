package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Placement
	Grow     key.Binding
	Shrink   key.Binding
	Wider    key.Binding
	Narrower key.Binding
	Taller   key.Binding
	Shorter  key.Binding
	Fine     key.Binding

	// Actions
	Enter   key.Binding
	Back    key.Binding
	Pick    key.Binding
	Clear   key.Binding
	Protect key.Binding
	Refresh key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Grow, k.Shrink, k.Wider, k.Narrower, k.Taller, k.Shorter, k.Fine},
		{k.Enter, k.Back, k.Pick, k.Clear, k.Protect, k.Refresh},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Grow: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "grow"),
		),
		Shrink: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "shrink"),
		),
		Wider: key.NewBinding(
			key.WithKeys("L", "shift+right"),
			key.WithHelp("L", "wider"),
		),
		Narrower: key.NewBinding(
			key.WithKeys("H", "shift+left"),
			key.WithHelp("H", "narrower"),
		),
		Taller: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "taller"),
		),
		Shorter: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "shorter"),
		),
		Fine: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "fine steps"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "place / apply"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Pick: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "choose sticker"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear sticker"),
		),
		Protect: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "toggle capture protection"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
