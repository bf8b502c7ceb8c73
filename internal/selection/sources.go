package selection

import (
	"context"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/option"
)

// Source returns the option source for kind. Each source reads the upstream
// selection when the refresh is issued, not when the response arrives.
func (c *Coordinator) Source(kind model.Kind) option.Source {
	switch kind {
	case model.KindProject:
		return c.ProjectSource()
	case model.KindSequence:
		return c.SequenceSource()
	case model.KindShot:
		return c.ShotSource()
	case model.KindTask:
		return c.TaskSource()
	}
	return nil
}

// ProjectSource lists every project
func (c *Coordinator) ProjectSource() option.Source { return c.projectSource }

// SequenceSource lists the sequences of the selected project
func (c *Coordinator) SequenceSource() option.Source { return c.sequenceSource }

// ShotSource lists the shots of the selected project, filtered by the selected
// sequence if there is one
func (c *Coordinator) ShotSource() option.Source { return c.shotSource }

// TaskSource lists the tasks of the selected shot
func (c *Coordinator) TaskSource() option.Source { return c.taskSource }

func (c *Coordinator) projectSource() (option.FetchFunc, bool) {
	return c.dir.ListProjects, true
}

func (c *Coordinator) sequenceSource() (option.FetchFunc, bool) {
	project := c.store.Get(model.KindProject)
	if project == nil {
		return nil, false
	}
	projectID := project.ID
	return func(ctx context.Context) ([]model.Entity, error) {
		return c.dir.ListSequences(ctx, projectID)
	}, true
}

func (c *Coordinator) shotSource() (option.FetchFunc, bool) {
	snap := c.store.Snapshot()
	if snap.Project == nil {
		return nil, false
	}
	projectID, sequenceID := snap.Project.ID, 0
	if snap.Sequence != nil {
		sequenceID = snap.Sequence.ID
	}
	return func(ctx context.Context) ([]model.Entity, error) {
		return c.dir.ListShots(ctx, projectID, sequenceID)
	}, true
}

func (c *Coordinator) taskSource() (option.FetchFunc, bool) {
	shot := c.store.Get(model.KindShot)
	if shot == nil {
		return nil, false
	}
	shotID := shot.ID
	return func(ctx context.Context) ([]model.Entity, error) {
		return c.dir.ListTasks(ctx, shotID)
	}, true
}
