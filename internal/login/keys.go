package login

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the form's key bindings
type KeyMap struct {
	Submit key.Binding
	Next   key.Binding
	Prev   key.Binding
	Toggle key.Binding
}

// DefaultKeyMap returns the default form bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "user/script auth"),
		),
	}
}
