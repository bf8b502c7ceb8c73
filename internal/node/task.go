package node

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

// TaskNode selects a task of the shot and records who works on it
type TaskNode struct {
	base
	store  *selection.Store
	ctrl   *option.Control
	unbind func()
}

// NewTaskNode creates a task node bound to coord
func NewTaskNode(coord *selection.Coordinator) *TaskNode {
	ctrl, unbind := coord.NewControl(model.KindTask, option.WithLabel("task"))
	return &TaskNode{store: coord.Store(), ctrl: ctrl, unbind: unbind}
}

func (n *TaskNode) Name() string { return "Task Selector" }

// Control returns the task list
func (n *TaskNode) Control() *option.Control { return n.ctrl }

func (n *TaskNode) OnCreate() tea.Cmd {
	return n.ctrl.Refresh()
}

func (n *TaskNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	session := sessionOf(in)
	if session == nil {
		return Outputs{}, ErrNoSession
	}
	if in.Context == nil || in.Context.Shot == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "shot"}
	}
	task := n.store.Get(model.KindTask)
	if task == nil {
		return Outputs{Context: in.Context, Info: "No task selected"}, nil
	}

	out := pipeline.Merge(in.Context, pipeline.Context{
		Task: pipeline.TaskRef(*task),
		User: &pipeline.Ref{ID: session.UserID, Name: session.UserName},
	})
	filename, err := pipeline.ResolveFilename(out, "")
	if err != nil {
		return Outputs{}, err
	}
	out.ResolvedFilename = pipeline.String(filename)

	info := "Task: " + out.Task.Name + "\nAssigned to: " + out.User.Name + "\nFilename: " + filename
	return Outputs{Context: &out, Info: info}, nil
}

func (n *TaskNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	return controlKey(n.ctrl, msg)
}

func (n *TaskNode) OnDraw(width, frame int) string {
	return n.draw(n.Name(), n.ctrl.View(n.focused, frame), width)
}

// Close unbinds the control from the coordinator
func (n *TaskNode) Close() {
	n.unbind()
}
