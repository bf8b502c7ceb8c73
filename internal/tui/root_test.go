package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/login"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/node"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

type fakeRemote struct {
	publishErr error
	published  []flow.PublishRequest
}

func (f *fakeRemote) Login(ctx context.Context, c flow.Credentials) (*model.Session, error) {
	return &model.Session{SiteURL: c.SiteURL, UserName: "Ana", UserID: 7, AuthMethod: c.AuthMethod}, nil
}
func (f *fakeRemote) Status(ctx context.Context) (*model.Session, error) { return nil, nil }
func (f *fakeRemote) Logout(ctx context.Context) error                   { return nil }

func (f *fakeRemote) ListProjects(ctx context.Context) ([]model.Entity, error) {
	return []model.Entity{{ID: 1, Name: "X"}, {ID: 2, Name: "Y"}}, nil
}
func (f *fakeRemote) ListSequences(ctx context.Context, projectID int) ([]model.Entity, error) {
	return []model.Entity{{ID: 10, Name: "SQ010"}}, nil
}
func (f *fakeRemote) ListShots(ctx context.Context, projectID, sequenceID int) ([]model.Entity, error) {
	return []model.Entity{{ID: 100, Name: "SH010"}}, nil
}
func (f *fakeRemote) ListTasks(ctx context.Context, shotID int) ([]model.Entity, error) {
	return []model.Entity{{ID: 1000, Name: "comp"}}, nil
}
func (f *fakeRemote) SetSelectionStatus(ctx context.Context, kind model.Kind, id int, opts flow.SelectOptions) error {
	return nil
}
func (f *fakeRemote) LatestVersion(ctx context.Context, shotID int) (*flow.Version, error) {
	return &flow.Version{ID: 9, VersionNumber: 2}, nil
}
func (f *fakeRemote) Publish(ctx context.Context, req flow.PublishRequest) (string, error) {
	f.published = append(f.published, req)
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return "555", nil
}

type host struct {
	m        Model
	remote   *fakeRemote
	coord    *selection.Coordinator
	machine  *login.Machine
	project  *node.ProjectNode
	publish  *node.PublishNode
	filename *node.FilenameNode
}

func newHost(t *testing.T, connected bool) *host {
	t.Helper()
	remote := &fakeRemote{}
	machine := login.New(remote, login.WithDefaults(flow.Credentials{
		SiteURL: "https://studio.example.com", Login: "ana", Password: "pw",
	}))
	if connected {
		cmd := machine.Submit()
		machine.HandleMessage(cmd())
	}

	coord := selection.NewCoordinator(selection.NewStore(), remote, selection.Options{})
	h := &host{
		remote:   remote,
		coord:    coord,
		machine:  machine,
		project:  node.NewProjectNode(coord),
		publish:  node.NewPublishNode(remote, node.PublishSettings{FilePath: "/renders/out.exr"}),
		filename: node.NewFilenameNode(""),
	}
	shot := node.NewShotNode(coord, remote)
	task := node.NewTaskNode(coord)
	t.Cleanup(func() {
		h.project.Close()
		shot.Close()
		task.Close()
	})

	chain := node.NewChain(nil, node.NewLoginNode(machine), h.project, shot, task, h.publish, h.filename)
	h.m = NewRootModel(Options{Coordinator: coord, Login: machine, Chain: chain})
	return h
}

func (h *host) send(msg tea.Msg) tea.Cmd {
	updated, cmd := h.m.Update(msg)
	h.m = updated.(Model)
	return cmd
}

// drain runs cmd and feeds every resulting message back into the model
func (h *host) drain(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 100 {
			t.Fatal("message loop did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		queue = append(queue, h.send(msg))
	}
}

func (h *host) selectAll() {
	store := h.coord.Store()
	store.Set(model.KindProject, &model.Entity{ID: 1, Name: "X"})
	store.Set(model.KindShot, &model.Entity{ID: 100, Name: "SH010"})
	store.Set(model.KindTask, &model.Entity{ID: 1000, Name: "comp"})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func hasActivity(m Model, substr string) bool {
	for _, e := range m.Activity() {
		if strings.Contains(e.Text, substr) {
			return true
		}
	}
	return false
}

func TestFocusCycles(t *testing.T) {
	h := newHost(t, false)

	steps := []struct {
		key  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeyCtrlN}, "Project Browser"},
		{tea.KeyMsg{Type: tea.KeyCtrlN}, "Shot Browser"},
		{tea.KeyMsg{Type: tea.KeyCtrlP}, "Project Browser"},
		{tea.KeyMsg{Type: tea.KeyCtrlP}, "Flow Login"},
		{tea.KeyMsg{Type: tea.KeyCtrlP}, "Filename from Pipe"},
		{tea.KeyMsg{Type: tea.KeyCtrlN}, "Flow Login"},
	}
	if got := h.m.Focused(); got != "Flow Login" {
		t.Fatalf("initial focus = %q", got)
	}
	for i, s := range steps {
		h.send(s.key)
		if got := h.m.Focused(); got != s.want {
			t.Fatalf("step %d: focus = %q, want %q", i, got, s.want)
		}
	}
}

func TestPrintableKeysGoToTextNode(t *testing.T) {
	h := newHost(t, false)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlP}) // filename node

	for _, r := range []string{"q", "x", "]"} {
		h.send(keyRunes(r))
	}
	if got := h.filename.Suffix(); got != "qx]" {
		t.Errorf("suffix = %q, want host keys to be typed into the field", got)
	}
	if h.m.Focused() != "Filename from Pipe" {
		t.Errorf("focus moved to %q", h.m.Focused())
	}
	if h.m.Running() {
		t.Error("typing x started a run")
	}
}

func TestQuitFromListNode(t *testing.T) {
	h := newHost(t, false)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN}) // project node

	cmd := h.send(keyRunes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q on a list node should quit")
	}
}

func TestInterruptAlwaysQuits(t *testing.T) {
	h := newHost(t, false)
	h.send(tea.KeyMsg{Type: tea.KeyCtrlP}) // text node

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit from any node")
	}
}

func TestHelpToggle(t *testing.T) {
	h := newHost(t, false)
	h.send(tea.WindowSizeMsg{Width: 120, Height: 50})
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})

	h.send(keyRunes("?"))
	if !strings.Contains(h.m.View(), "Keyboard Shortcuts") {
		t.Fatal("help overlay not shown")
	}
	h.send(tea.KeyMsg{Type: tea.KeyEsc})
	if strings.Contains(h.m.View(), "Keyboard Shortcuts") {
		t.Error("help overlay not closed by esc")
	}
}

func TestLoginRefreshesLists(t *testing.T) {
	h := newHost(t, false)

	cmd := h.send(tea.KeyMsg{Type: tea.KeyEnter})
	if h.machine.State() != login.StateConnecting {
		t.Fatalf("state = %s, want connecting", h.machine.State())
	}
	h.drain(t, cmd)

	if h.machine.State() != login.StateConnected {
		t.Fatalf("state = %s, want connected", h.machine.State())
	}
	if !hasActivity(h.m, "Logged in as Ana") {
		t.Error("login not recorded in activity")
	}
	if got := len(h.project.Control().Items()); got != 2 {
		t.Errorf("project list has %d items after login, want 2", got)
	}
}

func TestInvalidLoginIsReported(t *testing.T) {
	h := newHost(t, false)
	h.machine.SetCredentials(flow.Credentials{SiteURL: "https://studio.example.com", Login: "ana"})

	cmd := h.send(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("invalid credentials should not issue a remote call")
	}
	if h.machine.State() != login.StateFailed {
		t.Fatalf("state = %s, want failed", h.machine.State())
	}
	if !hasActivity(h.m, "password") {
		t.Error("failure reason not recorded in activity")
	}

	h.send(tea.WindowSizeMsg{Width: 120, Height: 50})
	if !strings.Contains(h.m.View(), "login failed") {
		t.Error("login failure not shown in the banner")
	}
}

func TestExecuteRunsChain(t *testing.T) {
	h := newHost(t, true)
	h.selectAll()
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN}) // list node, so x is a host key

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil || !h.m.Running() {
		t.Fatal("execute did not start a run")
	}
	if again := h.send(keyRunes("x")); again != nil {
		t.Error("second execute while running should be ignored")
	}

	h.send(cmd())
	if h.m.Running() {
		t.Error("still running after the result arrived")
	}
	results := h.m.Results()
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s failed: %v", r.Node, r.Err)
		}
	}
	if !hasActivity(h.m, "6 nodes executed") {
		t.Error("run summary not recorded")
	}
	if !hasActivity(h.m, "X_SH010_comp_v003") {
		t.Error("resolved filename not recorded")
	}
	if len(h.remote.published) != 0 {
		t.Error("disabled publish sent a request")
	}
}

func TestPublishFailureShowsBanner(t *testing.T) {
	h := newHost(t, true)
	h.selectAll()
	h.remote.publishErr = &flow.PublishError{Reason: "quota exceeded"}
	h.publish.SetSettings(node.PublishSettings{FilePath: "/renders/out.exr", Enabled: true})

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlR})
	h.send(cmd())
	h.send(tea.WindowSizeMsg{Width: 120, Height: 60})

	view := h.m.View()
	if !strings.Contains(view, "publish failed: quota exceeded") {
		t.Error("publish error not shown")
	}
	var skipped int
	for _, r := range h.m.Results() {
		if r.Skipped {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want the filename node skipped", skipped)
	}
}

func TestSideEffectLogged(t *testing.T) {
	h := newHost(t, true)

	h.send(selection.SideEffectMsg{Kind: model.KindShot, ID: 100, Err: errors.New("boom")})
	entries := h.m.Activity()
	last := entries[len(entries)-1]
	if last.Level != LevelWarn || !strings.Contains(last.Text, "boom") {
		t.Errorf("last activity = %+v", last)
	}

	h.send(selection.SideEffectMsg{Kind: model.KindTask, ID: 1000})
	if !hasActivity(h.m, "task 1000 updated") {
		t.Error("successful side effect not recorded")
	}
}

func TestDisconnectClearsSelection(t *testing.T) {
	h := newHost(t, true)
	h.selectAll()
	h.send(tea.KeyMsg{Type: tea.KeyCtrlN})

	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd == nil {
		t.Fatal("disconnect returned no command")
	}
	if h.coord.Store().Get(model.KindProject) != nil {
		t.Error("selection survived disconnect")
	}
	if _, ok := h.machine.Session(); ok {
		t.Error("session survived disconnect")
	}
	h.drain(t, cmd)
	if !hasActivity(h.m, "Disconnected") {
		t.Error("logout not recorded")
	}
}

func TestViewRendersNodes(t *testing.T) {
	h := newHost(t, true)
	if got := h.m.View(); got != "Loading..." {
		t.Errorf("view before size = %q", got)
	}
	h.send(tea.WindowSizeMsg{Width: 120, Height: 120})

	view := h.m.View()
	for _, want := range []string{"VFX FLOW", "Ana", "Flow Login", "Project Browser", "Filename from Pipe", "ACTIVITY"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestActivityLogBuffer(t *testing.T) {
	a := NewActivityLog(3)
	for i := 1; i <= 5; i++ {
		a.Add(LevelInfo, "test", strconv.Itoa(i))
	}
	entries := a.Entries()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Text != "3" || entries[2].Text != "5" {
		t.Errorf("entries = %+v", entries)
	}
	if out := a.Render(40, 8); !strings.Contains(out, "ACTIVITY") {
		t.Error("render missing title")
	}
}
