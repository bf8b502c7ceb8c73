// Package option implements a selectable list bound to an asynchronous
// remote fetch. Refreshes are tagged with a monotonic token so a response
// that arrives after a newer refresh was issued is dropped.
package option

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// Status is the load state of a control
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrStaleResponse is returned when a response belongs to a superseded refresh
var ErrStaleResponse = errors.New("option: stale response")

// FetchFunc produces the option list
type FetchFunc func(ctx context.Context) ([]model.Entity, error)

// Source yields the fetch for the upstream scope current at call time.
// ok is false when the upstream dependency is not satisfied.
type Source func() (fetch FetchFunc, ok bool)

// Static wraps a fetch without upstream dependencies
func Static(fetch FetchFunc) Source {
	return func() (FetchFunc, bool) { return fetch, true }
}

// Listener is notified synchronously when the selection changes
type Listener func(selected *model.Entity) tea.Cmd

// LoadedMsg carries the result of a refresh back to its control
type LoadedMsg struct {
	ControlID int
	Token     uint64
	Items     []model.Entity
	Err       error
}

var lastID int64

func nextID() int {
	return int(atomic.AddInt64(&lastID, 1))
}

// Control is a selectable list bound to a Source
type Control struct {
	id       int
	kind     model.Kind
	label    string
	source   Source
	listener Listener
	ctx      context.Context
	logger   *slog.Logger

	status   Status
	items    []model.Entity
	selected *model.Entity
	cursor   int
	errMsg   string
	token    uint64
}

// Opt configures a Control
type Opt func(*Control)

// WithLabel sets the display label (defaults to the kind)
func WithLabel(label string) Opt {
	return func(c *Control) { c.label = label }
}

// WithContext sets the base context for fetches
func WithContext(ctx context.Context) Opt {
	return func(c *Control) { c.ctx = ctx }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Opt {
	return func(c *Control) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a control for the given kind
func New(kind model.Kind, source Source, opts ...Opt) *Control {
	c := &Control{
		id:     nextID(),
		kind:   kind,
		label:  string(kind),
		source: source,
		ctx:    context.Background(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Control) ID() int { return c.id }
func (c *Control) Kind() model.Kind { return c.kind }
func (c *Control) Label() string { return c.label }
func (c *Control) Status() Status { return c.status }
func (c *Control) Err() string { return c.errMsg }
func (c *Control) Cursor() int { return c.cursor }
func (c *Control) Items() []model.Entity {
	return append([]model.Entity(nil), c.items...)
}

// Selected returns a copy of the selected entity, or nil
func (c *Control) Selected() *model.Entity {
	if c.selected == nil {
		return nil
	}
	e := c.selected.Clone()
	return &e
}

// SetListener registers the change listener, replacing any previous one
func (c *Control) SetListener(l Listener) {
	c.listener = l
}

// Refresh re-issues the fetch. With the upstream dependency unsatisfied it
// clears the list and returns nil without fetching.
func (c *Control) Refresh() tea.Cmd {
	var fetch FetchFunc
	ok := false
	if c.source != nil {
		fetch, ok = c.source()
	}
	// Invalidate whatever is still in flight either way
	c.token++
	if !ok || fetch == nil {
		c.status = StatusIdle
		c.items = []model.Entity{}
		c.errMsg = ""
		c.cursor = 0
		return nil
	}

	c.status = StatusLoading
	c.errMsg = ""
	id, token, ctx := c.id, c.token, c.ctx
	return func() tea.Msg {
		items, err := fetch(ctx)
		return LoadedMsg{ControlID: id, Token: token, Items: items, Err: err}
	}
}

// Apply applies a refresh result. It returns ErrStaleResponse if the result
// was superseded, and the listener's command if the selection was dropped.
func (c *Control) Apply(msg LoadedMsg) (tea.Cmd, error) {
	if msg.ControlID != c.id {
		return nil, nil
	}
	if msg.Token != c.token {
		c.logger.Debug("discarding stale option response",
			"control", c.label, "token", msg.Token, "current", c.token)
		return nil, ErrStaleResponse
	}

	if msg.Err != nil {
		c.status = StatusError
		c.errMsg = msg.Err.Error()
		c.items = []model.Entity{}
		c.cursor = 0
		c.logger.Warn("option refresh failed", "control", c.label, "error", msg.Err)
		return nil, nil
	}

	c.status = StatusReady
	c.items = append([]model.Entity(nil), msg.Items...)
	if c.items == nil {
		c.items = []model.Entity{}
	}
	c.clampCursor()

	if c.selected == nil {
		return nil, nil
	}
	if found := model.FindByID(c.items, c.selected.ID); found != nil {
		c.selected = found
		c.cursor = c.indexOf(found.ID)
		return nil, nil
	}
	c.selected = nil
	return c.notify(), nil
}

// Update routes messages addressed to this control
func (c *Control) Update(msg tea.Msg) tea.Cmd {
	if loaded, ok := msg.(LoadedMsg); ok {
		cmd, _ := c.Apply(loaded)
		return cmd
	}
	return nil
}

// Select selects the entity with the given id (or none if absent) and
// notifies the listener
func (c *Control) Select(id int) tea.Cmd {
	c.selected = model.FindByID(c.items, id)
	if c.selected != nil {
		c.cursor = c.indexOf(id)
	}
	return c.notify()
}

// SelectCursor selects the item under the cursor
func (c *Control) SelectCursor() tea.Cmd {
	if c.cursor < 0 || c.cursor >= len(c.items) {
		return nil
	}
	return c.Select(c.items[c.cursor].ID)
}

// Sync sets the selection without notifying the listener
func (c *Control) Sync(e *model.Entity) {
	if e == nil {
		c.selected = nil
		return
	}
	clone := e.Clone()
	c.selected = &clone
	if idx := c.indexOf(e.ID); idx >= 0 {
		c.cursor = idx
	}
}

// Clear drops the selection and items without notifying the listener.
// A refresh still in flight is invalidated.
func (c *Control) Clear() {
	c.token++
	c.status = StatusIdle
	c.errMsg = ""
	c.selected = nil
	c.items = []model.Entity{}
	c.cursor = 0
}

// CursorUp moves the cursor up one item
func (c *Control) CursorUp() {
	if c.cursor > 0 {
		c.cursor--
	}
}

// CursorDown moves the cursor down one item
func (c *Control) CursorDown() {
	if c.cursor < len(c.items)-1 {
		c.cursor++
	}
}

func (c *Control) notify() tea.Cmd {
	if c.listener == nil {
		return nil
	}
	return c.listener(c.Selected())
}

func (c *Control) indexOf(id int) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Control) clampCursor() {
	if c.cursor >= len(c.items) {
		c.cursor = len(c.items) - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
}
