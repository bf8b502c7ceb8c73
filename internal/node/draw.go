package node

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3F4451")).
			Padding(0, 1)

	focusedPanelStyle = panelStyle.BorderForeground(lipgloss.Color("#61AFEF"))

	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	skipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#636B78")).Italic(true)
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#636B78"))
)

// draw frames a node body together with its last execution report
func (b *base) draw(title, body string, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(title))
	content.WriteString("\n")
	content.WriteString(body)

	info, err := b.LastReport()
	switch {
	case IsSkipped(err):
		content.WriteString("\n\n" + skipStyle.Render(err.Error()))
	case err != nil:
		content.WriteString("\n\n" + errStyle.Render("ERROR: "+err.Error()))
	case info != "":
		content.WriteString("\n\n" + infoStyle.Render(info))
	}

	style := panelStyle
	if b.focused {
		style = focusedPanelStyle
	}
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(content.String())
}

func toggle(label string, on bool) string {
	if on {
		return onStyle.Render("[x] " + label)
	}
	return offStyle.Render("[ ] " + label)
}
