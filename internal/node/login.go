package node

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/login"
)

// LoginNode exposes the login machine's session to the chain
type LoginNode struct {
	base
	machine *login.Machine
}

// NewLoginNode creates a login node over m
func NewLoginNode(m *login.Machine) *LoginNode {
	return &LoginNode{machine: m}
}

func (n *LoginNode) Name() string { return "Flow Login" }

// Machine returns the underlying login machine
func (n *LoginNode) Machine() *login.Machine { return n.machine }

// OnCreate picks up a session the server still holds
func (n *LoginNode) OnCreate() tea.Cmd {
	return n.machine.Restore()
}

func (n *LoginNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	s, ok := n.machine.Session()
	if !ok {
		return Outputs{}, ErrNoSession
	}
	return Outputs{Session: &s, Info: "Logged in as " + s.UserName}, nil
}

func (n *LoginNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	return n.machine.HandleMessage(msg)
}

// AcceptsText is true while the credential form is editable
func (n *LoginNode) AcceptsText() bool { return n.machine.Editable() }

func (n *LoginNode) OnDraw(width, frame int) string {
	return n.draw(n.Name(), n.machine.View(width-4, frame), width)
}
