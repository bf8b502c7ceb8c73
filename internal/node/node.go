// Package node defines the graph nodes of the flow chain and the executor
// that threads the pipeline context through them.
package node

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
)

// ErrNoSession is returned by nodes that need a session when none exists
var ErrNoSession = errors.New("node: not logged in")

// Inputs is what a node receives from upstream
type Inputs struct {
	Session *model.Session
	Context *pipeline.Context
}

// Outputs is what a node emits. Values holds derived scalars
// (filename, folder_suggestion, latest_version_path, version_id).
type Outputs struct {
	Session *model.Session
	Context *pipeline.Context
	Values  map[string]string
	Info    string
}

// Output value names
const (
	ValueLatestVersionPath = "latest_version_path"
	ValueVersionID         = "version_id"
	ValueFilename          = "filename"
	ValueFolderSuggestion  = "folder_suggestion"
)

// Node is a graph node. OnExecute may run off the event loop and must only
// touch state that is safe for that.
type Node interface {
	Name() string
	OnCreate() tea.Cmd
	OnExecute(ctx context.Context, in Inputs) (Outputs, error)
	OnDraw(width, frame int) string
}

// KeyHandler is implemented by nodes that take keyboard input when focused
type KeyHandler interface {
	HandleKey(msg tea.KeyMsg) (tea.Cmd, bool)
}

// Reporter is implemented by nodes that keep their last execution result
// for display
type Reporter interface {
	Report(info string, err error)
	LastReport() (info string, err error)
}

// Focusable is implemented by nodes that render differently when focused
type Focusable interface {
	SetFocused(focused bool)
}

// TextEntry is implemented by nodes that consume printable keys while focused
type TextEntry interface {
	AcceptsText() bool
}

// base is embedded by every node. It holds the last execution text, which
// is written by the chain and read by the event loop.
type base struct {
	mu      sync.RWMutex
	info    string
	err     error
	focused bool
}

func (b *base) Report(info string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info, b.err = info, err
}

func (b *base) LastReport() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info, b.err
}

func (b *base) SetFocused(focused bool) {
	b.focused = focused
}

// sessionOf picks the session from the direct input or the inbound context
func sessionOf(in Inputs) *model.Session {
	if in.Session != nil {
		return in.Session
	}
	if in.Context != nil {
		return in.Context.Session
	}
	return nil
}
