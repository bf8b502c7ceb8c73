package node

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

// ProjectNode selects a project and starts the pipeline context
type ProjectNode struct {
	base
	store  *selection.Store
	ctrl   *option.Control
	unbind func()
}

// NewProjectNode creates a project node bound to coord
func NewProjectNode(coord *selection.Coordinator) *ProjectNode {
	ctrl, unbind := coord.NewControl(model.KindProject, option.WithLabel("project"))
	return &ProjectNode{store: coord.Store(), ctrl: ctrl, unbind: unbind}
}

func (n *ProjectNode) Name() string { return "Project Browser" }

// Control returns the project list
func (n *ProjectNode) Control() *option.Control { return n.ctrl }

func (n *ProjectNode) OnCreate() tea.Cmd {
	return n.ctrl.Refresh()
}

func (n *ProjectNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	session := sessionOf(in)
	if session == nil {
		return Outputs{}, ErrNoSession
	}
	project := n.store.Get(model.KindProject)
	if project == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "project"}
	}

	out := pipeline.Merge(nil, pipeline.Context{
		Session: session,
		Project: pipeline.ProjectRef(*project),
	})
	return Outputs{Context: &out, Info: "Project: " + project.Label()}, nil
}

func (n *ProjectNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	return controlKey(n.ctrl, msg)
}

func (n *ProjectNode) OnDraw(width, frame int) string {
	return n.draw(n.Name(), n.ctrl.View(n.focused, frame), width)
}

// Close unbinds the control from the coordinator
func (n *ProjectNode) Close() {
	n.unbind()
}
