package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the host-level key bindings. Keys not bound here go to
// the focused node.
type KeyMap struct {
	// Navigation
	NextNode key.Binding
	PrevNode key.Binding

	// Actions
	Execute    key.Binding
	Cancel     key.Binding
	Reload     key.Binding
	Disconnect key.Binding
	Help       key.Binding
	Escape     key.Binding
	Quit       key.Binding
	Interrupt  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextNode: key.NewBinding(
			key.WithKeys("ctrl+n", "]"),
			key.WithHelp("ctrl+n", "next node"),
		),
		PrevNode: key.NewBinding(
			key.WithKeys("ctrl+p", "["),
			key.WithHelp("ctrl+p", "previous node"),
		),
		Execute: key.NewBinding(
			key.WithKeys("ctrl+r", "x"),
			key.WithHelp("ctrl+r", "execute chain"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "cancel run"),
		),
		Reload: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "reload lists"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "disconnect"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1", "?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextNode, k.Execute, k.Help, k.Interrupt}
}

// FullHelp returns the bindings shown in the help overlay
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextNode, k.PrevNode},
		{k.Execute, k.Cancel, k.Reload, k.Disconnect},
		{k.Help, k.Escape, k.Quit, k.Interrupt},
	}
}
