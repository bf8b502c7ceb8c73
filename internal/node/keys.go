package node

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Refresh key.Binding
	Switch  key.Binding
	Toggle  key.Binding
	Status  key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "select"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Switch: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next field"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "enable"),
	),
	Status: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "status"),
	),
}

// controlKey applies list navigation and selection to ctrl
func controlKey(ctrl *option.Control, msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Up):
		ctrl.CursorUp()
		return nil, true
	case key.Matches(msg, keys.Down):
		ctrl.CursorDown()
		return nil, true
	case key.Matches(msg, keys.Select):
		return ctrl.SelectCursor(), true
	case key.Matches(msg, keys.Refresh):
		return ctrl.Refresh(), true
	}
	return nil, false
}
