package node

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
)

// Publisher creates versions in the remote directory
type Publisher interface {
	Publish(ctx context.Context, req flow.PublishRequest) (string, error)
}

// PublishSettings are the user-editable publish fields
type PublishSettings struct {
	FilePath    string
	Description string
	Status      string
	Enabled     bool
}

const (
	publishFile = iota
	publishDescription
)

// PublishNode publishes the context's shot as a new version. Nothing is sent
// unless publishing is enabled.
type PublishNode struct {
	base
	publisher Publisher

	mu       sync.Mutex
	settings PublishSettings

	inputs [2]textinput.Model
	focus  int
}

// NewPublishNode creates a publish node. An empty status defaults to rev.
func NewPublishNode(p Publisher, defaults PublishSettings) *PublishNode {
	if defaults.Status == "" {
		defaults.Status = flow.PublishPendingReview
	}
	n := &PublishNode{publisher: p, settings: defaults}

	file := textinput.New()
	file.Prompt = "File: "
	file.PromptStyle = fieldStyle
	file.Placeholder = "/renders/X_SH010_comp_v001.exr"
	file.CharLimit = 1024
	file.SetValue(defaults.FilePath)
	file.Focus()

	desc := textinput.New()
	desc.Prompt = "Note: "
	desc.PromptStyle = fieldStyle
	desc.Placeholder = "description"
	desc.CharLimit = 2048
	desc.SetValue(defaults.Description)

	n.inputs = [2]textinput.Model{publishFile: file, publishDescription: desc}
	return n
}

func (n *PublishNode) Name() string { return "Publish to Flow" }

// Settings returns the current publish fields
func (n *PublishNode) Settings() PublishSettings {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.settings
}

// SetSettings replaces the publish fields
func (n *PublishNode) SetSettings(s PublishSettings) {
	if s.Status == "" {
		s.Status = flow.PublishPendingReview
	}
	n.inputs[publishFile].SetValue(s.FilePath)
	n.inputs[publishDescription].SetValue(s.Description)
	n.mu.Lock()
	n.settings = s
	n.mu.Unlock()
}

func (n *PublishNode) OnCreate() tea.Cmd { return nil }

func (n *PublishNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	s := n.Settings()
	if !s.Enabled {
		return Outputs{Info: "Publish disabled\nEnable publishing to upload to Flow"}, nil
	}
	if sessionOf(in) == nil {
		return Outputs{}, ErrNoSession
	}
	c := in.Context
	if c == nil || c.Project == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "project"}
	}
	if c.Shot == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "shot"}
	}

	code := c.Filename()
	if code == "" {
		code = fmt.Sprintf("v%03d", c.Version())
	}
	req := flow.PublishRequest{
		ProjectID:   c.Project.ID,
		ShotID:      c.Shot.ID,
		Code:        code,
		FilePath:    strings.TrimSpace(s.FilePath),
		Description: s.Description,
		Status:      s.Status,
	}
	if c.Task != nil {
		req.TaskID = c.Task.ID
	}
	if c.User != nil {
		req.UserID = c.User.ID
	}

	versionID, err := n.publisher.Publish(ctx, req)
	if err != nil {
		return Outputs{}, err
	}
	info := fmt.Sprintf("✓ Published to Flow\nVersion ID: %s\nCode: %s\nStatus: %s", versionID, code, s.Status)
	return Outputs{Values: map[string]string{ValueVersionID: versionID}, Info: info}, nil
}

func (n *PublishNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Switch):
		n.inputs[n.focus].Blur()
		n.focus = (n.focus + 1) % len(n.inputs)
		n.inputs[n.focus].Focus()
		return nil, true
	case key.Matches(msg, keys.Toggle):
		n.mu.Lock()
		n.settings.Enabled = !n.settings.Enabled
		n.mu.Unlock()
		return nil, true
	case key.Matches(msg, keys.Status):
		n.mu.Lock()
		n.settings.Status = nextStatus(n.settings.Status)
		n.mu.Unlock()
		return nil, true
	}

	var cmd tea.Cmd
	n.inputs[n.focus], cmd = n.inputs[n.focus].Update(msg)
	n.mu.Lock()
	n.settings.FilePath = n.inputs[publishFile].Value()
	n.settings.Description = n.inputs[publishDescription].Value()
	n.mu.Unlock()
	return cmd, true
}

func (n *PublishNode) AcceptsText() bool { return true }

func (n *PublishNode) OnDraw(width, frame int) string {
	s := n.Settings()
	var b strings.Builder
	for i := range n.inputs {
		in := n.inputs[i]
		if width > 12 {
			in.Width = width - 12
		}
		if !n.focused {
			in.Blur()
		}
		b.WriteString(in.View() + "\n")
	}
	var statuses []string
	for _, st := range flow.PublishStatuses {
		if st == s.Status {
			statuses = append(statuses, onStyle.Render(st))
		} else {
			statuses = append(statuses, offStyle.Render(st))
		}
	}
	b.WriteString(fieldStyle.Render("Status: ") + strings.Join(statuses, " ") + "\n")
	b.WriteString(toggle("publish on execute", s.Enabled))
	return n.draw(n.Name(), b.String(), width)
}

func nextStatus(current string) string {
	for i, st := range flow.PublishStatuses {
		if st == current {
			return flow.PublishStatuses[(i+1)%len(flow.PublishStatuses)]
		}
	}
	return flow.PublishStatuses[0]
}
