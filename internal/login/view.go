package login

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C678DD")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#636B78"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	methodStyle  = lipgloss.NewStyle().
			Background(lipgloss.Color("#2C313C")).
			Foreground(lipgloss.Color("#ABB2BF")).
			Padding(0, 1)
)

var spinnerFrames = spinner.MiniDot.Frames

// View renders the form and the status line
func (m *Machine) View(width, frame int) string {
	var b strings.Builder

	method := "User login"
	if m.method == model.AuthScript {
		method = "Script key"
	}
	b.WriteString(titleStyle.Render("AUTH") + " " + methodStyle.Render(method))
	b.WriteString("\n\n")

	state := m.State()
	if state == StateConnected {
		b.WriteString(okStyle.Render("✓ " + m.Status()))
		b.WriteString("\n")
		if s, ok := m.Session(); ok {
			b.WriteString(mutedStyle.Render("  " + s.SiteURL))
		}
		return b.String()
	}

	for _, idx := range m.visibleFields() {
		in := m.inputs[idx]
		if width > 16 {
			in.Width = width - 16
		}
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch state {
	case StateConnecting:
		b.WriteString(pendingStyle.Render(spinnerFrames[frame%len(spinnerFrames)] + " " + m.Status()))
	case StateFailed:
		b.WriteString(failStyle.Render("✗ " + m.Status()))
	default:
		b.WriteString(mutedStyle.Render(m.Status()))
	}
	return b.String()
}
