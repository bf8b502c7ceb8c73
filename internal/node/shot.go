package node

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/pipeline"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/selection"
)

// VersionLookup finds the newest published version of a shot
type VersionLookup interface {
	LatestVersion(ctx context.Context, shotID int) (*flow.Version, error)
}

// ShotNode selects a sequence and shot and works out the next version
type ShotNode struct {
	base
	store    *selection.Store
	versions VersionLookup
	sequence *option.Control
	shot     *option.Control
	focus    int
	unbind   []func()
}

// NewShotNode creates a shot node bound to coord
func NewShotNode(coord *selection.Coordinator, versions VersionLookup) *ShotNode {
	seq, unbindSeq := coord.NewControl(model.KindSequence, option.WithLabel("sequence"))
	shot, unbindShot := coord.NewControl(model.KindShot, option.WithLabel("shot"))
	return &ShotNode{
		store:    coord.Store(),
		versions: versions,
		sequence: seq,
		shot:     shot,
		focus:    1,
		unbind:   []func(){unbindSeq, unbindShot},
	}
}

func (n *ShotNode) Name() string { return "Shot Browser" }

// Controls returns the sequence and shot lists
func (n *ShotNode) Controls() (sequence, shot *option.Control) {
	return n.sequence, n.shot
}

func (n *ShotNode) OnCreate() tea.Cmd {
	return tea.Batch(n.sequence.Refresh(), n.shot.Refresh())
}

func (n *ShotNode) OnExecute(ctx context.Context, in Inputs) (Outputs, error) {
	if sessionOf(in) == nil {
		return Outputs{}, ErrNoSession
	}
	if in.Context == nil || in.Context.Project == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "project"}
	}
	shot := n.store.Get(model.KindShot)
	if shot == nil {
		return Outputs{}, &pipeline.MissingFieldError{Field: "shot"}
	}
	sequence := n.store.Get(model.KindSequence)

	latest, err := n.versions.LatestVersion(ctx, shot.ID)
	if err != nil {
		return Outputs{}, fmt.Errorf("latest version of %s: %w", shot.Label(), err)
	}
	next, latestPath := 1, ""
	if latest != nil {
		next = latest.VersionNumber + 1
		latestPath = latest.Path
	}

	out := pipeline.Merge(in.Context, pipeline.Context{
		Session:       sessionOf(in),
		Shot:          pipeline.ShotFrom(*shot, sequence),
		VersionNumber: pipeline.Int(next),
	})
	filename, err := pipeline.ResolveFilename(out, "")
	if err != nil {
		return Outputs{}, err
	}
	out.ResolvedFilename = pipeline.String(filename)

	seqName := out.Shot.Sequence
	if seqName == "" {
		seqName = "-"
	}
	lines := []string{
		"Shot: " + out.Shot.Code,
		"Sequence: " + seqName,
		"Status: " + statusText(shot.Status),
		fmt.Sprintf("Next Version: v%03d", next),
	}
	if latestPath != "" {
		lines = append(lines, "Latest: "+path.Base(latestPath))
	}

	return Outputs{
		Context: &out,
		Values:  map[string]string{ValueLatestVersionPath: latestPath},
		Info:    strings.Join(lines, "\n"),
	}, nil
}

func (n *ShotNode) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, keys.Switch) {
		n.focus = 1 - n.focus
		return nil, true
	}
	return controlKey(n.current(), msg)
}

func (n *ShotNode) current() *option.Control {
	if n.focus == 0 {
		return n.sequence
	}
	return n.shot
}

func (n *ShotNode) OnDraw(width, frame int) string {
	body := n.sequence.View(n.focused && n.focus == 0, frame) + "\n\n" +
		n.shot.View(n.focused && n.focus == 1, frame)
	return n.draw(n.Name(), body, width)
}

// Close unbinds the controls from the coordinator
func (n *ShotNode) Close() {
	for _, fn := range n.unbind {
		fn()
	}
}

func statusText(status string) string {
	switch status {
	case "":
		return "N/A"
	case model.StatusInProgress:
		return "In Progress"
	default:
		return status
	}
}
