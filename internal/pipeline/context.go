// Package pipeline carries the accumulated selection through a node chain
// and derives output names from it.
package pipeline

import (
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// Ref identifies a project, task or user in the context
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Shot is the shot as carried in the context. Sequence is the sequence name,
// empty when the shot has none.
type Shot struct {
	ID       int    `json:"id"`
	Code     string `json:"code"`
	Sequence string `json:"sequence,omitempty"`
	CutIn    *int   `json:"cutIn,omitempty"`
	CutOut   *int   `json:"cutOut,omitempty"`
}

// Context is the value passed from node to node. A nil field is unset.
type Context struct {
	Session          *model.Session `json:"session,omitempty"`
	Project          *Ref           `json:"project,omitempty"`
	Shot             *Shot          `json:"shot,omitempty"`
	Task             *Ref           `json:"task,omitempty"`
	User             *Ref           `json:"user,omitempty"`
	VersionNumber    *int           `json:"versionNumber,omitempty"`
	ResolvedFilename *string        `json:"resolvedFilename,omitempty"`
}

// Merge returns a copy of inbound (or an empty context) with every non-nil
// field of patch overwritten. The result shares no memory with its inputs.
func Merge(inbound *Context, patch Context) Context {
	var out Context
	if inbound != nil {
		out = inbound.Clone()
	}
	if patch.Session != nil {
		s := *patch.Session
		out.Session = &s
	}
	if patch.Project != nil {
		out.Project = cloneRef(patch.Project)
	}
	if patch.Shot != nil {
		out.Shot = cloneShot(patch.Shot)
	}
	if patch.Task != nil {
		out.Task = cloneRef(patch.Task)
	}
	if patch.User != nil {
		out.User = cloneRef(patch.User)
	}
	if patch.VersionNumber != nil {
		out.VersionNumber = Int(*patch.VersionNumber)
	}
	if patch.ResolvedFilename != nil {
		out.ResolvedFilename = String(*patch.ResolvedFilename)
	}
	return out
}

// Clone deep-copies the context
func (c Context) Clone() Context {
	out := Context{
		Project: cloneRef(c.Project),
		Shot:    cloneShot(c.Shot),
		Task:    cloneRef(c.Task),
		User:    cloneRef(c.User),
	}
	if c.Session != nil {
		s := *c.Session
		out.Session = &s
	}
	if c.VersionNumber != nil {
		out.VersionNumber = Int(*c.VersionNumber)
	}
	if c.ResolvedFilename != nil {
		out.ResolvedFilename = String(*c.ResolvedFilename)
	}
	return out
}

// Version returns the version number, 1 when unset
func (c Context) Version() int {
	if c.VersionNumber == nil {
		return 1
	}
	return *c.VersionNumber
}

// Filename returns the resolved filename or ""
func (c Context) Filename() string {
	if c.ResolvedFilename == nil {
		return ""
	}
	return *c.ResolvedFilename
}

// ProjectRef converts a selected project
func ProjectRef(e model.Entity) *Ref {
	return &Ref{ID: e.ID, Name: e.Label()}
}

// TaskRef converts a selected task
func TaskRef(e model.Entity) *Ref {
	return &Ref{ID: e.ID, Name: e.Label()}
}

// ShotFrom converts a selected shot. The sequence name comes from the shot's
// own reference, falling back to the separately selected sequence.
func ShotFrom(e model.Entity, sequence *model.Entity) *Shot {
	s := &Shot{
		ID:       e.ID,
		Code:     e.Label(),
		Sequence: e.SequenceName(),
	}
	if s.Sequence == "" && sequence != nil {
		s.Sequence = sequence.Name
	}
	if e.CutIn != nil {
		s.CutIn = Int(*e.CutIn)
	}
	if e.CutOut != nil {
		s.CutOut = Int(*e.CutOut)
	}
	return s
}

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }

func cloneRef(r *Ref) *Ref {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneShot(s *Shot) *Shot {
	if s == nil {
		return nil
	}
	c := *s
	if s.CutIn != nil {
		c.CutIn = Int(*s.CutIn)
	}
	if s.CutOut != nil {
		c.CutOut = Int(*s.CutOut)
	}
	return &c
}
