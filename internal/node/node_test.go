package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/login"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

type fakeRemote struct {
	latest     *flow.Version
	latestErr  error
	published  []flow.PublishRequest
	publishErr error
}

func (f *fakeRemote) Login(ctx context.Context, c flow.Credentials) (*model.Session, error) {
	return &model.Session{SiteURL: c.SiteURL, UserName: "ana", UserID: 7, AuthMethod: c.AuthMethod}, nil
}
func (f *fakeRemote) Status(ctx context.Context) (*model.Session, error) { return nil, nil }
func (f *fakeRemote) Logout(ctx context.Context) error { return nil }

func (f *fakeRemote) ListProjects(ctx context.Context) ([]model.Entity, error) { return nil, nil }
func (f *fakeRemote) ListSequences(ctx context.Context, projectID int) ([]model.Entity, error) {
	return nil, nil
}
func (f *fakeRemote) ListShots(ctx context.Context, projectID, sequenceID int) ([]model.Entity, error) {
	return nil, nil
}
func (f *fakeRemote) ListTasks(ctx context.Context, shotID int) ([]model.Entity, error) {
	return nil, nil
}
func (f *fakeRemote) SetSelectionStatus(ctx context.Context, kind model.Kind, id int, opts flow.SelectOptions) error {
	return nil
}

func (f *fakeRemote) LatestVersion(ctx context.Context, shotID int) (*flow.Version, error) {
	return f.latest, f.latestErr
}

func (f *fakeRemote) Publish(ctx context.Context, req flow.PublishRequest) (string, error) {
	f.published = append(f.published, req)
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return "555", nil
}

type fixture struct {
	remote   *fakeRemote
	machine  *login.Machine
	store    *selection.Store
	publish  *PublishNode
	filename *FilenameNode
	chain    *Chain
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	remote := &fakeRemote{latest: &flow.Version{ID: 9, Code: "X_SH010_v002", VersionNumber: 2, Path: "/renders/X_SH010_v002.exr"}}
	machine := login.New(remote, login.WithDefaults(flow.Credentials{
		SiteURL: "https://studio.example", Login: "ana", Password: "pw",
	}))
	if connected {
		cmd := machine.Submit()
		machine.HandleMessage(cmd())
		if machine.State() != login.StateConnected {
			t.Fatalf("login state = %s", machine.State())
		}
	}

	coord := selection.NewCoordinator(selection.NewStore(), remote, selection.Options{})
	f := &fixture{
		remote:   remote,
		machine:  machine,
		store:    coord.Store(),
		publish:  NewPublishNode(remote, PublishSettings{FilePath: "/renders/out.exr", Description: "first pass"}),
		filename: NewFilenameNode("beauty"),
	}
	project := NewProjectNode(coord)
	shot := NewShotNode(coord, remote)
	task := NewTaskNode(coord)
	t.Cleanup(func() {
		project.Close()
		shot.Close()
		task.Close()
	})
	f.chain = NewChain(nil, NewLoginNode(machine), project, shot, task, f.publish, f.filename)
	return f
}

func (f *fixture) selectAll() {
	f.store.Set(model.KindProject, &model.Entity{ID: 1, Name: "X"})
	f.store.Set(model.KindShot, &model.Entity{ID: 100, Name: "SH010", Status: "wtg"})
	f.store.Set(model.KindTask, &model.Entity{ID: 1000, Name: "comp"})
}

func resultFor(t *testing.T, results []Result, name string) Result {
	t.Helper()
	for _, r := range results {
		if r.Node == name {
			return r
		}
	}
	t.Fatalf("no result for %s", name)
	return Result{}
}

func TestChainPropagatesContext(t *testing.T) {
	f := newFixture(t, true)
	f.selectAll()

	results, err := f.chain.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	task := resultFor(t, results, "Task Selector").Outputs.Context
	if task == nil {
		t.Fatal("task node emitted no context")
	}
	if task.Project.Name != "X" || task.Shot.Code != "SH010" || task.Task.Name != "comp" {
		t.Errorf("context lost upstream fields: %+v", task)
	}
	if task.Version() != 3 {
		t.Errorf("version = %d, want 3 (latest 2 + 1)", task.Version())
	}
	if task.User == nil || task.User.ID != 7 || task.User.Name != "ana" {
		t.Errorf("user = %+v, want the session identity", task.User)
	}
	if task.Filename() != "X_SH010_comp_v003" {
		t.Errorf("resolved filename = %q", task.Filename())
	}

	shot := resultFor(t, results, "Shot Browser")
	if got := shot.Outputs.Values[ValueLatestVersionPath]; got != "/renders/X_SH010_v002.exr" {
		t.Errorf("latest_version_path = %q", got)
	}

	out := resultFor(t, results, "Filename from Pipe").Outputs.Values
	if out[ValueFilename] != "X_SH010_comp_beauty_v003" {
		t.Errorf("filename = %q, want X_SH010_comp_beauty_v003", out[ValueFilename])
	}
	if out[ValueFolderSuggestion] != "X/SH010/render" {
		t.Errorf("folder = %q", out[ValueFolderSuggestion])
	}
}

func TestChainSkipsAfterFailure(t *testing.T) {
	f := newFixture(t, false)
	f.selectAll()

	results, err := f.chain.Run(context.Background())
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("Run() error = %v, want ErrNoSession", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for _, r := range results[1:] {
		if !r.Skipped || !errors.Is(r.Err, ErrSkipped) {
			t.Errorf("%s: skipped=%v err=%v, want skipped", r.Node, r.Skipped, r.Err)
		}
	}
	if !strings.Contains(results[1].Err.Error(), "Flow Login") {
		t.Errorf("skip reason = %q, want it to name the failing node", results[1].Err)
	}
	if len(f.remote.published) != 0 {
		t.Error("publish ran after an upstream failure")
	}

	if _, rerr := f.filename.LastReport(); !IsSkipped(rerr) {
		t.Errorf("filename node report = %v, want skipped", rerr)
	}
}

func TestChainWithoutTask(t *testing.T) {
	f := newFixture(t, true)
	f.store.Set(model.KindProject, &model.Entity{ID: 1, Name: "X"})
	f.store.Set(model.KindShot, &model.Entity{ID: 100, Name: "SH010"})
	s := f.publish.Settings()
	s.Enabled = true
	f.publish.SetSettings(s)

	results, err := f.chain.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	task := resultFor(t, results, "Task Selector")
	if task.Err != nil || task.Outputs.Info != "No task selected" {
		t.Errorf("task result = %+v", task)
	}
	if task.Outputs.Context == nil || task.Outputs.Context.Task != nil {
		t.Errorf("task node should pass the context through, got %+v", task.Outputs.Context)
	}

	if len(f.remote.published) != 1 {
		t.Fatalf("published %d versions, want 1", len(f.remote.published))
	}
	if req := f.remote.published[0]; req.TaskID != 0 || req.Code != "X_SH010_v003" {
		t.Errorf("request = %+v, want no task and code X_SH010_v003", req)
	}

	out := resultFor(t, results, "Filename from Pipe")
	if out.Skipped || out.Outputs.Values[ValueFilename] != "X_SH010_beauty_v003" {
		t.Errorf("filename result = %+v, want X_SH010_beauty_v003", out)
	}
}

func TestIsSkipped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"skip marker", fmt.Errorf("%w due to upstream failure of 'a'", ErrSkipped), true},
		{"node error with skipped text", errors.New("skipped frames in render"), false},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSkipped(tt.err); got != tt.want {
				t.Errorf("IsSkipped(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNodeFailureLeavesSharedStateAlone(t *testing.T) {
	f := newFixture(t, true)
	f.store.Set(model.KindProject, &model.Entity{ID: 1, Name: "X"})

	results, err := f.chain.Run(context.Background())
	var missing *pipeline.MissingFieldError
	if !errors.As(err, &missing) || missing.Field != "shot" {
		t.Fatalf("Run() error = %v, want missing shot", err)
	}
	if r := resultFor(t, results, "Shot Browser"); r.Skipped {
		t.Error("shot node should fail, not be skipped")
	}
	if p := f.store.Get(model.KindProject); p == nil || p.ID != 1 {
		t.Error("project selection changed by a node failure")
	}
	if _, ok := f.machine.Session(); !ok {
		t.Error("session dropped by a node failure")
	}
}

func TestShotVersionDefaultsToOne(t *testing.T) {
	f := newFixture(t, true)
	f.remote.latest = nil
	f.selectAll()

	results, err := f.chain.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	shot := resultFor(t, results, "Shot Browser")
	if v := shot.Outputs.Context.Version(); v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	if shot.Outputs.Values[ValueLatestVersionPath] != "" {
		t.Error("latest_version_path should be empty without versions")
	}
}

func TestPublishDisabledSendsNothing(t *testing.T) {
	f := newFixture(t, true)
	f.selectAll()

	results, err := f.chain.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(f.remote.published) != 0 {
		t.Errorf("published %d versions while disabled", len(f.remote.published))
	}
	if info := resultFor(t, results, "Publish to Flow").Outputs.Info; !strings.Contains(info, "disabled") {
		t.Errorf("info = %q", info)
	}
}

func TestPublishRequest(t *testing.T) {
	f := newFixture(t, true)
	f.selectAll()
	s := f.publish.Settings()
	s.Enabled = true
	s.Status = flow.PublishApproved
	f.publish.SetSettings(s)

	results, err := f.chain.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(f.remote.published) != 1 {
		t.Fatalf("published %d versions, want 1", len(f.remote.published))
	}
	want := flow.PublishRequest{
		ProjectID:   1,
		ShotID:      100,
		TaskID:      1000,
		UserID:      7,
		Code:        "X_SH010_comp_v003",
		FilePath:    "/renders/out.exr",
		Description: "first pass",
		Status:      "apr",
	}
	if got := f.remote.published[0]; got != want {
		t.Errorf("request = %+v\nwant %+v", got, want)
	}
	if id := resultFor(t, results, "Publish to Flow").Outputs.Values[ValueVersionID]; id != "555" {
		t.Errorf("version_id = %q", id)
	}
}

func TestPublishErrorIsRelayed(t *testing.T) {
	f := newFixture(t, true)
	f.selectAll()
	f.remote.publishErr = &flow.PublishError{Reason: "file not found"}
	s := f.publish.Settings()
	s.Enabled = true
	f.publish.SetSettings(s)

	_, err := f.chain.Run(context.Background())
	var pubErr *flow.PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("Run() error = %v, want *flow.PublishError", err)
	}
	if _, rerr := f.publish.LastReport(); rerr == nil {
		t.Error("publish node should report the failure")
	}
}

func TestCanceledContextStopsChain(t *testing.T) {
	f := newFixture(t, true)
	f.selectAll()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.chain.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if results[0].Skipped || !errors.Is(results[0].Err, context.Canceled) {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestNextStatusCycles(t *testing.T) {
	tests := []struct{ in, want string }{
		{"rev", "vwd"},
		{"vwd", "apr"},
		{"apr", "rev"},
		{"bogus", "rev"},
	}
	for _, tt := range tests {
		if got := nextStatus(tt.in); got != tt.want {
			t.Errorf("nextStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Node: "a"},
		{Node: "b", Err: errors.New("boom")},
		{Node: "c", Skipped: true, Err: fmt.Errorf("%w due to upstream failure of 'b'", ErrSkipped)},
	}
	if got := Summary(results); got != "1 ok, failed: b, 1 skipped" {
		t.Errorf("Summary() = %q", got)
	}
	if got := Summary(results[:1]); got != "1 nodes executed" {
		t.Errorf("Summary() = %q", got)
	}
}
