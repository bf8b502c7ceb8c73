package node

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
)

// FilenameNode derives the output filename and folder from the context
type FilenameNode struct {
	base

	mu     sync.Mutex
	suffix string
	input  textinput.Model
}

// NewFilenameNode creates a filename node with an initial suffix
func NewFilenameNode(suffix string) *FilenameNode {
	in := textinput.New()
	in.Prompt = "Suffix: "
	in.PromptStyle = fieldStyle
	in.Placeholder = "beauty"
	in.CharLimit = 64
	in.SetValue(suffix)
	in.Focus()
	return &FilenameNode{suffix: suffix, input: in}
}

func (n *FilenameNode) Name() string { return "Filename from Pipe" }

// Suffix returns the current suffix
func (n *FilenameNode) Suffix() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.suffix
}

// SetSuffix replaces the suffix
func (n *FilenameNode) SetSuffix(s string) {
	n.input.SetValue(s)
	n.mu.Lock()
	n.suffix = s
	n.mu.Unlock()
}

func (n *FilenameNode) OnCreate() tea.Cmd { return nil }

func (n *FilenameNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	if in.Context == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "project"}
	}
	filename, err := pipeline.ResolveFilename(*in.Context, n.Suffix())
	if err != nil {
		return Outputs{}, err
	}
	folder, err := pipeline.FolderSuggestion(*in.Context)
	if err != nil {
		return Outputs{}, err
	}
	return Outputs{
		Values: map[string]string{
			ValueFilename:         filename,
			ValueFolderSuggestion: folder,
		},
		Info: "Filename: " + filename + "\nFolder: " + folder,
	}, nil
}

func (n *FilenameNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	var cmd tea.Cmd
	n.input, cmd = n.input.Update(msg)
	n.mu.Lock()
	n.suffix = n.input.Value()
	n.mu.Unlock()
	return cmd, true
}

func (n *FilenameNode) AcceptsText() bool { return true }

func (n *FilenameNode) OnDraw(width, frame int) string {
	in := n.input
	if width > 12 {
		in.Width = width - 12
	}
	if !n.focused {
		in.Blur()
	}
	return n.draw(n.Name(), in.View(), width)
}
