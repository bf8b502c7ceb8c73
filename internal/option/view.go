package option

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C678DD")).Bold(true)
	itemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF")).PaddingLeft(1)
	cursorStyle   = lipgloss.NewStyle().Background(lipgloss.Color("#2C313C")).Foreground(lipgloss.Color("#ABB2BF")).Bold(true).PaddingLeft(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#636B78"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
)

// spinnerFrames are the loading animation frames
var spinnerFrames = spinner.Dot.Frames

// maxVisible caps how many items are rendered at once
const maxVisible = 8

// View renders the control. focused highlights the cursor row; frame drives
// the loading animation.
func (c *Control) View(focused bool, frame int) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(strings.ToUpper(c.label)))
	if c.selected != nil {
		b.WriteString(" " + selectedStyle.Render(c.selected.Label()))
	}
	b.WriteString("\n")

	switch c.status {
	case StatusIdle:
		if len(c.items) == 0 {
			b.WriteString(mutedStyle.Render("  (nothing to show)"))
			return b.String()
		}
	case StatusLoading:
		b.WriteString(loadingStyle.Render(spinnerFrames[frame%len(spinnerFrames)] + " loading..."))
		return b.String()
	case StatusError:
		b.WriteString(errorStyle.Render("  ! " + c.errMsg))
		return b.String()
	}

	if len(c.items) == 0 {
		b.WriteString(mutedStyle.Render("  (empty)"))
		return b.String()
	}

	start := 0
	if c.cursor >= maxVisible {
		start = c.cursor - maxVisible + 1
	}
	end := start + maxVisible
	if end > len(c.items) {
		end = len(c.items)
	}
	for i := start; i < end; i++ {
		item := c.items[i]
		marker := "  "
		if c.selected != nil && c.selected.ID == item.ID {
			marker = "✓ "
		}
		line := marker + item.StatusIcon() + " " + item.Label()
		if focused && i == c.cursor {
			b.WriteString(cursorStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	if end < len(c.items) {
		b.WriteString("\n" + mutedStyle.Render("  … "+strconv.Itoa(len(c.items)-end)+" more"))
	}
	return b.String()
}
