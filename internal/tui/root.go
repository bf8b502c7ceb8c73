// Package tui hosts the flow node chain in a terminal. The bubbletea update
// loop is the single event queue: node keys, option refreshes, login results
// and chain runs all arrive here as messages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/login"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/node"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

// frameMsg advances the loading animations
type frameMsg struct{}

// Spinner animation frames
var spinnerFrames = spinner.Dot.Frames

// minActivityWidth hides the activity panel on narrow terminals
const minActivityWidth = 90

// Options wires the host to the flow components
type Options struct {
	Coordinator *selection.Coordinator
	Login       *login.Machine
	Chain       *node.Chain
	Context     context.Context
	Logger      *slog.Logger
}

// Model is the root Bubble Tea model
type Model struct {
	// Terminal dimensions
	width  int
	height int
	ready  bool

	showHelp bool

	coord   *selection.Coordinator
	machine *login.Machine
	chain   *node.Chain
	nodes   []node.Node
	focus   int

	ctx    context.Context
	logger *slog.Logger
	keys   KeyMap

	// Chain run state
	running   bool
	cancelRun context.CancelFunc
	results   []node.Result
	runErr    error

	activity ActivityLog
	frame    int
}

// NewRootModel creates the host over an assembled chain
func NewRootModel(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		coord:    opts.Coordinator,
		machine:  opts.Login,
		chain:    opts.Chain,
		nodes:    opts.Chain.Nodes(),
		ctx:      ctx,
		logger:   logger.With("component", "tui"),
		keys:     DefaultKeyMap(),
		activity: NewActivityLog(200),
	}
	m.setFocus(0)
	return m
}

// Init runs every node's creation hook and starts the animation tick
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameCmd()}
	for _, n := range m.nodes {
		cmds = append(cmds, n.OnCreate())
	}
	return tea.Batch(cmds...)
}

func frameCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

// Focused returns the name of the focused node
func (m Model) Focused() string {
	if len(m.nodes) == 0 {
		return ""
	}
	return m.nodes[m.focus].Name()
}

// Running reports whether a chain run is in flight
func (m Model) Running() bool { return m.running }

// Results returns the outcome of the last finished run
func (m Model) Results() []node.Result { return m.results }

// Activity returns the activity log entries
func (m Model) Activity() []ActivityEntry { return m.activity.Entries() }

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case frameMsg:
		m.frame++
		return m, frameCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case login.ResultMsg, login.LoggedOutMsg:
		before := m.machine.State()
		cmd, _ := m.machine.HandleMessage(msg)
		if out, ok := msg.(login.LoggedOutMsg); ok {
			if out.Err != nil {
				m.activity.Add(LevelWarn, "logout", "remote logout failed: "+out.Err.Error())
			} else {
				m.activity.Add(LevelInfo, "logout", "Disconnected")
			}
		}
		follow := m.noteLogin(before)
		return m, tea.Batch(cmd, follow)

	case option.LoadedMsg:
		if msg.Err != nil {
			m.activity.Add(LevelWarn, "fetch", msg.Err.Error())
		}
		return m, m.coord.Update(msg)

	case selection.SideEffectMsg:
		if msg.Err != nil {
			m.activity.Add(LevelWarn, "status", fmt.Sprintf("%s %d: %v", msg.Kind, msg.ID, msg.Err))
		} else {
			m.activity.Add(LevelInfo, "status", fmt.Sprintf("%s %d updated", msg.Kind, msg.ID))
		}
		return m, nil

	case node.RunMsg:
		m.finishRun(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		m.stopRun()
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	focused := m.focusedNode()

	// Plain characters belong to a focused text field
	typing := acceptsText(focused) && (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace)
	if !typing {
		switch {
		case key.Matches(msg, m.keys.NextNode):
			m.setFocus(m.focus + 1)
			return m, nil
		case key.Matches(msg, m.keys.PrevNode):
			m.setFocus(m.focus - 1)
			return m, nil
		case key.Matches(msg, m.keys.Execute):
			return m.execute()
		case key.Matches(msg, m.keys.Cancel):
			if m.running && m.cancelRun != nil {
				m.cancelRun()
				m.activity.Add(LevelWarn, "run", "Cancel requested")
			}
			return m, nil
		case key.Matches(msg, m.keys.Reload):
			m.activity.Add(LevelInfo, "fetch", "Reloading lists")
			return m, m.coord.RefreshAll()
		case key.Matches(msg, m.keys.Disconnect):
			return m.disconnect()
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Quit):
			m.stopRun()
			return m, tea.Quit
		}
	}

	h, ok := focused.(node.KeyHandler)
	if !ok {
		return m, nil
	}
	before := m.machine.State()
	cmd, _ := h.HandleKey(msg)
	follow := m.noteLogin(before)
	return m, tea.Batch(cmd, follow)
}

// noteLogin records a login state change and reloads the lists once a
// session exists
func (m *Model) noteLogin(before login.State) tea.Cmd {
	after := m.machine.State()
	if after == before {
		return nil
	}
	switch after {
	case login.StateConnecting:
		m.activity.Add(LevelInfo, "login", m.machine.Status())
	case login.StateFailed:
		m.activity.Add(LevelError, "login", m.machine.Status())
	case login.StateConnected:
		m.activity.Add(LevelInfo, "login", m.machine.Status())
		return m.coord.RefreshAll()
	}
	return nil
}

func (m Model) execute() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.running = true
	m.cancelRun = cancel
	m.activity.Add(LevelInfo, "run", fmt.Sprintf("Executing %d nodes", len(m.nodes)))
	m.logger.Info("chain run started", "nodes", len(m.nodes))
	return m, m.chain.RunCmd(ctx)
}

func (m *Model) finishRun(msg node.RunMsg) {
	m.stopRun()
	m.running = false
	m.results = msg.Results
	m.runErr = msg.Err

	summary := node.Summary(msg.Results)
	if msg.Err != nil {
		m.activity.Add(LevelError, "run", summary)
		m.logger.Warn("chain run failed", "error", msg.Err)
	} else {
		m.activity.Add(LevelInfo, "run", summary)
		m.logger.Info("chain run finished", "summary", summary)
	}

	for _, r := range msg.Results {
		if r.Err != nil && !r.Skipped {
			m.activity.Add(LevelError, r.Node, r.Err.Error())
		}
		if v := r.Outputs.Values[node.ValueVersionID]; v != "" {
			m.activity.Add(LevelInfo, "publish", "Version "+v+" created")
		}
		if v := r.Outputs.Values[node.ValueFilename]; v != "" {
			m.activity.Add(LevelInfo, "filename", v)
		}
	}
}

func (m *Model) stopRun() {
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
}

func (m Model) disconnect() (tea.Model, tea.Cmd) {
	cmd := m.machine.Disconnect()
	if cmd == nil {
		return m, nil
	}
	m.coord.Clear()
	return m, cmd
}

func (m Model) focusedNode() node.Node {
	if len(m.nodes) == 0 {
		return nil
	}
	return m.nodes[m.focus]
}

func (m *Model) setFocus(i int) {
	n := len(m.nodes)
	if n == 0 {
		return
	}
	if f, ok := m.nodes[m.focus].(node.Focusable); ok {
		f.SetFocused(false)
	}
	m.focus = ((i % n) + n) % n
	if f, ok := m.nodes[m.focus].(node.Focusable); ok {
		f.SetFocused(true)
	}
}

func acceptsText(n node.Node) bool {
	t, ok := n.(node.TextEntry)
	return ok && t.AcceptsText()
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.helpView()
	}

	header := m.renderHeader()
	status := m.renderStatusBar()
	parts := []string{header}
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(status)
	if banner := m.renderBanner(); banner != "" {
		parts = append(parts, banner)
		bodyHeight -= lipgloss.Height(banner)
	}
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	body := m.renderNodes(m.width, bodyHeight)
	if m.width >= minActivityWidth {
		nodesWidth := m.width * 3 / 5
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderNodes(nodesWidth, bodyHeight),
			m.activity.Render(m.width-nodesWidth, bodyHeight),
		)
	}

	parts = append(parts, body, status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader renders the title and the session, if any
func (m Model) renderHeader() string {
	line := TitleStyle.Render("VFX FLOW") + "  " + SubtitleStyle.Render("Production tracking chain")
	if s, ok := m.machine.Session(); ok {
		line += SessionStyle.Render(" · " + s.UserName + " @ " + s.SiteURL)
	}
	return lipgloss.NewStyle().PaddingLeft(1).Width(m.width).Render(line)
}

// renderBanner shows login and publish failures of the last run prominently
func (m Model) renderBanner() string {
	var authErr *flow.AuthError
	var pubErr *flow.PublishError
	switch {
	case errors.As(m.runErr, &pubErr):
		return ErrorStyle.Bold(true).PaddingLeft(1).Render("✗ " + pubErr.Error())
	case errors.As(m.runErr, &authErr):
		return ErrorStyle.Bold(true).PaddingLeft(1).Render("✗ " + authErr.Error())
	case m.machine.State() == login.StateFailed:
		return ErrorStyle.Bold(true).PaddingLeft(1).Render("✗ " + m.machine.Status())
	}
	return ""
}

// renderNodes stacks the node panels and scrolls the focused one into view
func (m Model) renderNodes(width, height int) string {
	var panels []string
	top, focusedTop, focusedHeight := 0, 0, 0
	for i, n := range m.nodes {
		p := n.OnDraw(width, m.frame)
		h := lipgloss.Height(p)
		if i == m.focus {
			focusedTop, focusedHeight = top, h
		}
		top += h
		panels = append(panels, p)
	}

	offset := 0
	if bottom := focusedTop + focusedHeight; bottom > height {
		offset = bottom - height
	}
	if offset > focusedTop {
		offset = focusedTop
	}

	vp := viewport.New(width, height)
	vp.SetContent(strings.Join(panels, "\n"))
	vp.SetYOffset(offset)
	return vp.View()
}

// renderStatusBar renders the bottom status bar
func (m Model) renderStatusBar() string {
	var status string
	if m.running {
		status = StatusRunningStyle.Render(spinnerFrames[m.frame%len(spinnerFrames)] + " Running")
	} else {
		status = StatusIdleStyle.Render("○ Ready")
	}

	if len(m.results) > 0 {
		summary := node.Summary(m.results)
		if m.runErr != nil {
			status += StatusIdleStyle.Render(" │ ") + ErrorStyle.Render(summary)
		} else {
			status += StatusIdleStyle.Render(" │ ") + SuccessStyle.Render(summary)
		}
	}

	keyStyle := lipgloss.NewStyle().Foreground(ColorFgPrimary)
	var hints []string
	for _, b := range m.keys.ShortHelp() {
		hints = append(hints, keyStyle.Render(b.Help().Key)+StatusIdleStyle.Render(" "+b.Help().Desc))
	}
	return StatusBarStyle.Render(status + StatusIdleStyle.Render(" │ ") + strings.Join(hints, StatusIdleStyle.Render(" │ ")))
}

// nodeHelp lists the keys handled inside the node panels
var nodeHelp = [][2]string{
	{"↑/k ↓/j", "Move in a list"},
	{"enter/space", "Select item"},
	{"r", "Refresh list"},
	{"tab", "Switch field or list"},
	{"ctrl+t", "Toggle auth method"},
	{"ctrl+e", "Toggle publishing"},
	{"ctrl+s", "Cycle publish status"},
}

// helpView renders the help overlay
func (m Model) helpView() string {
	var b strings.Builder
	b.WriteString(HelpTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, k := range group {
			b.WriteString(HelpKeyStyle.Render(fmt.Sprintf("%-12s", k.Help().Key)))
			b.WriteString(HelpDescStyle.Render(k.Help().Desc))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n" + HelpTitleStyle.Render("In a node") + "\n\n")
	for _, h := range nodeHelp {
		b.WriteString(HelpKeyStyle.Render(fmt.Sprintf("%-12s", h[0])))
		b.WriteString(HelpDescStyle.Render(h[1]))
		b.WriteString("\n")
	}
	b.WriteString("\n" + HelpDescStyle.Render("Press ? or Esc to close"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, HelpStyle.Render(b.String()))
}
