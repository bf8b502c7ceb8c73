package selection

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
)

// Directory is the part of the remote directory the coordinator needs
type Directory interface {
	ListProjects(ctx context.Context) ([]model.Entity, error)
	ListSequences(ctx context.Context, projectID int) ([]model.Entity, error)
	ListShots(ctx context.Context, projectID, sequenceID int) ([]model.Entity, error)
	ListTasks(ctx context.Context, shotID int) ([]model.Entity, error)
	SetSelectionStatus(ctx context.Context, kind model.Kind, id int, opts flow.SelectOptions) error
}

// SideEffectMsg reports the outcome of a best-effort status update issued
// after a shot or task selection. Err is informational only.
type SideEffectMsg struct {
	Kind model.Kind
	ID   int
	Err  error
}

// Options configures selection side effects
type Options struct {
	// SetShotInProgress marks a selected shot as in progress
	SetShotInProgress bool
	// AssignTasks assigns a selected task to the current user and marks it
	// in progress
	AssignTasks bool
	Context     context.Context
	Logger      *slog.Logger
}

// Coordinator keeps every bound control consistent with the store. A
// selection made through any control cascades into all controls of the
// dependent kinds.
type Coordinator struct {
	store  *Store
	dir    Directory
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	controls map[model.Kind][]*option.Control
}

// NewCoordinator creates a coordinator over store and dir
func NewCoordinator(store *Store, dir Directory, opts Options) *Coordinator {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:    store,
		dir:      dir,
		opts:     opts,
		logger:   logger.With("component", "selection"),
		controls: make(map[model.Kind][]*option.Control),
	}
}

// Store returns the backing store
func (c *Coordinator) Store() *Store {
	return c.store
}

// NewControl creates a control of kind with the coordinator's source for that
// kind and binds it
func (c *Coordinator) NewControl(kind model.Kind, opts ...option.Opt) (*option.Control, func()) {
	opts = append([]option.Opt{option.WithContext(c.opts.Context), option.WithLogger(c.logger)}, opts...)
	ctrl := option.New(kind, c.Source(kind), opts...)
	return ctrl, c.Bind(ctrl)
}

// Bind registers ctrl, syncs it with the current selection and routes its
// selections through the coordinator. The returned function unbinds it.
func (c *Coordinator) Bind(ctrl *option.Control) func() {
	kind := ctrl.Kind()
	ctrl.Sync(c.store.Get(kind))
	ctrl.SetListener(func(selected *model.Entity) tea.Cmd {
		return c.Select(kind, selected)
	})

	c.mu.Lock()
	c.controls[kind] = append(c.controls[kind], ctrl)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.controls[kind]
		for i, bound := range list {
			if bound == ctrl {
				c.controls[kind] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		ctrl.SetListener(nil)
	}
}

// Controls returns the controls bound for kind
func (c *Coordinator) Controls(kind model.Kind) []*option.Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*option.Control(nil), c.controls[kind]...)
}

// Select records e as the selection for kind. Every downstream kind is reset
// and its controls refreshed against the new upstream scope. Re-selecting
// the current entity is a no-op.
func (c *Coordinator) Select(kind model.Kind, e *model.Entity) tea.Cmd {
	if sameEntity(c.store.Get(kind), e) {
		return nil
	}

	change := c.store.Set(kind, e)
	c.logger.Debug("selection changed", "kind", kind, "entity", entityID(e), "cleared", change.Cleared)

	var cmds []tea.Cmd
	for _, sibling := range c.Controls(kind) {
		sibling.Sync(change.Entity)
	}
	for _, downstream := range change.Cleared {
		for _, ctrl := range c.Controls(downstream) {
			ctrl.Sync(nil)
			cmds = append(cmds, ctrl.Refresh())
		}
	}
	if e != nil {
		cmds = append(cmds, c.sideEffect(kind, e.ID))
	}
	return tea.Batch(cmds...)
}

// Refresh refreshes every bound control of kind
func (c *Coordinator) Refresh(kind model.Kind) tea.Cmd {
	var cmds []tea.Cmd
	for _, ctrl := range c.Controls(kind) {
		cmds = append(cmds, ctrl.Refresh())
	}
	return tea.Batch(cmds...)
}

// RefreshAll refreshes every bound control
func (c *Coordinator) RefreshAll() tea.Cmd {
	var cmds []tea.Cmd
	for _, kind := range model.Kinds {
		cmds = append(cmds, c.Refresh(kind))
	}
	return tea.Batch(cmds...)
}

// Clear drops the whole selection and empties every bound control
func (c *Coordinator) Clear() {
	c.store.Set(model.KindProject, nil)
	for _, kind := range model.Kinds {
		for _, ctrl := range c.Controls(kind) {
			ctrl.Clear()
		}
	}
}

// Reset clears the selection and reloads the controls without an upstream
// dependency
func (c *Coordinator) Reset() tea.Cmd {
	c.Clear()
	return c.RefreshAll()
}

// Update routes refresh results to the bound controls
func (c *Coordinator) Update(msg tea.Msg) tea.Cmd {
	loaded, ok := msg.(option.LoadedMsg)
	if !ok {
		return nil
	}
	for _, kind := range model.Kinds {
		for _, ctrl := range c.Controls(kind) {
			if ctrl.ID() == loaded.ControlID {
				return ctrl.Update(loaded)
			}
		}
	}
	return nil
}

func (c *Coordinator) sideEffect(kind model.Kind, id int) tea.Cmd {
	var opts flow.SelectOptions
	switch {
	case kind == model.KindShot && c.opts.SetShotInProgress:
		opts = flow.SelectOptions{SetInProgress: true}
	case kind == model.KindTask && c.opts.AssignTasks:
		opts = flow.SelectOptions{SetInProgress: true, AssignToMe: true}
	default:
		return nil
	}

	dir, ctx, logger := c.dir, c.opts.Context, c.logger
	return func() tea.Msg {
		err := dir.SetSelectionStatus(ctx, kind, id, opts)
		if err != nil {
			logger.Warn("selection status update failed", "kind", kind, "id", id, "error", err)
		} else {
			logger.Info("selection status updated", "kind", kind, "id", id,
				"in_progress", opts.SetInProgress, "assign", opts.AssignToMe)
		}
		return SideEffectMsg{Kind: kind, ID: id, Err: err}
	}
}

func sameEntity(a, b *model.Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

func entityID(e *model.Entity) int {
	if e == nil {
		return 0
	}
	return e.ID
}
