// Package login holds the connection state for the remote directory: the
// credential form, the login attempt in flight and the resulting session.
package login

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// State is the login state
type State int

const (
	StateIdle       State = iota // Not connected, form editable
	StateConnecting              // Login request in flight
	StateConnected               // Session established
	StateFailed                  // Last attempt failed, form editable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Authenticator is the part of the remote directory the machine talks to
type Authenticator interface {
	Login(ctx context.Context, creds flow.Credentials) (*model.Session, error)
	Status(ctx context.Context) (*model.Session, error)
	Logout(ctx context.Context) error
}

// --- Messages ---

// ResultMsg is sent when a login or restore attempt finishes
type ResultMsg struct {
	Attempt  uint64
	Session  *model.Session
	Err      error
	Restored bool
}

// LoggedOutMsg is sent after the remote logout call returns
type LoggedOutMsg struct {
	Err error
}

// Form fields
const (
	fieldSite = iota
	fieldLogin
	fieldPassword
	fieldScript
	fieldAPIKey
	numFields
)

// Machine is the login state machine. Session may be called from any
// goroutine; everything else belongs to the event loop.
type Machine struct {
	auth   Authenticator
	ctx    context.Context
	logger *slog.Logger
	keys   KeyMap

	mu      sync.RWMutex
	state   State
	session *model.Session
	status  string
	err     error
	attempt uint64

	method model.AuthMethod
	inputs [numFields]textinput.Model
	focus  int
}

// Option configures a Machine
type Option func(*Machine)

// WithContext sets the base context for remote calls
func WithContext(ctx context.Context) Option {
	return func(m *Machine) { m.ctx = ctx }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDefaults prefills the form. Secrets are accepted but never persisted
// by the caller.
func WithDefaults(c flow.Credentials) Option {
	return func(m *Machine) { m.SetCredentials(c) }
}

// New creates a machine in the Idle state
func New(auth Authenticator, opts ...Option) *Machine {
	m := &Machine{
		auth:   auth,
		ctx:    context.Background(),
		logger: slog.Default(),
		keys:   DefaultKeyMap(),
		method: model.AuthUser,
		status: "Not connected",
	}
	m.inputs = newInputs()
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "login")
	m.inputs[fieldSite].Focus()
	return m
}

func newInputs() [numFields]textinput.Model {
	var in [numFields]textinput.Model
	specs := [numFields]struct {
		prompt, placeholder string
		secret              bool
	}{
		fieldSite:     {"Site:     ", "https://studio.shotgrid.autodesk.com", false},
		fieldLogin:    {"Login:    ", "user@studio.com", false},
		fieldPassword: {"Password: ", "", true},
		fieldScript:   {"Script:   ", "comfyui_vfx_flow", false},
		fieldAPIKey:   {"API Key:  ", "", true},
	}
	for i, s := range specs {
		t := textinput.New()
		t.Prompt = s.prompt
		t.PromptStyle = promptStyle
		t.Placeholder = s.placeholder
		t.CharLimit = 256
		t.Width = 48
		if s.secret {
			t.EchoMode = textinput.EchoPassword
			t.EchoCharacter = '•'
		}
		in[i] = t
	}
	return in
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Status returns the human-readable status line
func (m *Machine) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Err returns the error of the last failed attempt
func (m *Machine) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Session returns a copy of the session. ok is false unless connected.
func (m *Machine) Session() (model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateConnected || m.session == nil {
		return model.Session{}, false
	}
	return *m.session, true
}

// Method returns the selected auth method
func (m *Machine) Method() model.AuthMethod {
	return m.method
}

// Editable reports whether the form accepts input
func (m *Machine) Editable() bool {
	s := m.State()
	return s == StateIdle || s == StateFailed
}

// ToggleMethod switches between user and script authentication
func (m *Machine) ToggleMethod() {
	if !m.Editable() {
		return
	}
	if m.method == model.AuthUser {
		m.method = model.AuthScript
	} else {
		m.method = model.AuthUser
	}
	m.setFocus(0)
}

// SetCredentials fills the form
func (m *Machine) SetCredentials(c flow.Credentials) {
	if c.AuthMethod == model.AuthScript {
		m.method = model.AuthScript
	} else {
		m.method = model.AuthUser
	}
	m.inputs[fieldSite].SetValue(c.SiteURL)
	m.inputs[fieldLogin].SetValue(c.Login)
	m.inputs[fieldPassword].SetValue(c.Password)
	m.inputs[fieldScript].SetValue(c.ScriptName)
	m.inputs[fieldAPIKey].SetValue(c.APIKey)
}

// Credentials captures the current form
func (m *Machine) Credentials() flow.Credentials {
	return flow.Credentials{
		SiteURL:    m.inputs[fieldSite].Value(),
		AuthMethod: m.method,
		Login:      m.inputs[fieldLogin].Value(),
		Password:   m.inputs[fieldPassword].Value(),
		ScriptName: m.inputs[fieldScript].Value(),
		APIKey:     m.inputs[fieldAPIKey].Value(),
	}.Normalize()
}

// Submit starts a login attempt from Idle or Failed. Invalid credentials
// fail immediately without a remote call.
func (m *Machine) Submit() tea.Cmd {
	creds := m.Credentials()

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.attempt++
	attempt := m.attempt
	m.session = nil

	if err := creds.Validate(); err != nil {
		m.fail(&flow.AuthError{Reason: err.Error(), Err: err})
		m.mu.Unlock()
		m.logger.Info("login rejected before sending", "error", err)
		return nil
	}

	m.state = StateConnecting
	m.err = nil
	m.status = "Connecting to " + creds.SiteURL + "..."
	m.mu.Unlock()

	m.logger.Info("login attempt", "attempt", attempt, "credentials", creds)
	auth, ctx := m.auth, m.ctx
	return func() tea.Msg {
		session, err := auth.Login(ctx, creds)
		return ResultMsg{Attempt: attempt, Session: session, Err: err}
	}
}

// Restore asks the server for a live session. The state stays Idle unless
// one exists.
func (m *Machine) Restore() tea.Cmd {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return nil
	}
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	auth, ctx := m.auth, m.ctx
	return func() tea.Msg {
		session, err := auth.Status(ctx)
		return ResultMsg{Attempt: attempt, Session: session, Err: err, Restored: true}
	}
}

// Disconnect drops the session from Connected or Connecting and issues a
// best-effort remote logout
func (m *Machine) Disconnect() tea.Cmd {
	m.mu.Lock()
	if m.state != StateConnected && m.state != StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.attempt++
	m.state = StateIdle
	m.session = nil
	m.err = nil
	m.status = "Disconnected"
	m.mu.Unlock()

	m.logger.Info("disconnected")
	auth, ctx, logger := m.auth, m.ctx, m.logger
	return func() tea.Msg {
		err := auth.Logout(ctx)
		if err != nil {
			logger.Warn("remote logout failed", "error", err)
		}
		return LoggedOutMsg{Err: err}
	}
}

// HandleMessage processes login results and, while the form is editable,
// key input. It reports whether the message was consumed.
func (m *Machine) HandleMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case ResultMsg:
		m.apply(msg)
		return nil, true
	case LoggedOutMsg:
		return nil, true
	case tea.KeyMsg:
		if !m.Editable() {
			return nil, false
		}
		return m.handleKey(msg)
	}
	return nil, false
}

func (m *Machine) apply(msg ResultMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.Attempt != m.attempt {
		m.logger.Debug("ignoring superseded login result", "attempt", msg.Attempt, "current", m.attempt)
		return
	}

	if msg.Restored {
		if m.state != StateIdle {
			return
		}
		if msg.Err != nil {
			m.logger.Debug("session restore failed", "error", msg.Err)
			return
		}
		if msg.Session != nil {
			m.connect(msg.Session)
			m.logger.Info("session restored", "user", msg.Session.UserName)
		}
		return
	}

	if m.state != StateConnecting {
		return
	}
	if msg.Err != nil {
		m.fail(msg.Err)
		m.logger.Warn("login failed", "attempt", msg.Attempt, "error", msg.Err)
		return
	}
	if msg.Session == nil {
		m.fail(&flow.AuthError{Reason: "no session returned"})
		return
	}
	m.connect(msg.Session)
	m.logger.Info("logged in", "user", msg.Session.UserName, "site", msg.Session.SiteURL)
}

// connect and fail expect m.mu to be held

func (m *Machine) connect(s *model.Session) {
	copied := *s
	m.session = &copied
	m.state = StateConnected
	m.err = nil
	m.status = "Logged in as " + copied.UserName
}

func (m *Machine) fail(err error) {
	m.state = StateFailed
	m.session = nil
	m.err = err
	var authErr *flow.AuthError
	if errors.As(err, &authErr) {
		m.status = authErr.Error()
	} else {
		m.status = "login failed: " + err.Error()
	}
}

func (m *Machine) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.Submit(), true
	case key.Matches(msg, m.keys.Next):
		m.setFocus(m.focus + 1)
		return nil, true
	case key.Matches(msg, m.keys.Prev):
		m.setFocus(m.focus - 1)
		return nil, true
	case key.Matches(msg, m.keys.Toggle):
		m.ToggleMethod()
		return nil, true
	}

	fields := m.visibleFields()
	var cmd tea.Cmd
	idx := fields[m.focus]
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return cmd, true
}

// visibleFields lists the form fields the current auth method uses
func (m *Machine) visibleFields() []int {
	if m.method == model.AuthScript {
		return []int{fieldSite, fieldScript, fieldAPIKey}
	}
	return []int{fieldSite, fieldLogin, fieldPassword}
}

func (m *Machine) setFocus(i int) {
	fields := m.visibleFields()
	i = (i + len(fields)) % len(fields)
	m.focus = i
	for n := range m.inputs {
		m.inputs[n].Blur()
	}
	m.inputs[fields[i]].Focus()
}
