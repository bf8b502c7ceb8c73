// Package selection owns the current selection snapshot and the cascade that
// invalidates and refreshes dependent option controls when an upstream
// selection changes.
package selection

import (
	"log/slog"
	"sync"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// edges are the direct dependencies between kinds. The shot list is filtered
// by sequence, so sequence is upstream of shot.
var edges = map[model.Kind][]model.Kind{
	model.KindProject:  {model.KindSequence, model.KindShot},
	model.KindSequence: {model.KindShot, model.KindTask},
	model.KindShot:     {model.KindTask},
}

// Downstream returns every kind that depends on kind, directly or
// transitively, in cascade order
func Downstream(kind model.Kind) []model.Kind {
	reached := map[model.Kind]bool{}
	var walk func(k model.Kind)
	walk = func(k model.Kind) {
		for _, next := range edges[k] {
			if !reached[next] {
				reached[next] = true
				walk(next)
			}
		}
	}
	walk(kind)

	out := make([]model.Kind, 0, len(reached))
	for _, k := range model.Kinds {
		if reached[k] {
			out = append(out, k)
		}
	}
	return out
}

// Snapshot holds at most one selected entity per kind
type Snapshot struct {
	Project  *model.Entity
	Sequence *model.Entity
	Shot     *model.Entity
	Task     *model.Entity
}

// Get returns the selection for kind, or nil
func (s Snapshot) Get(kind model.Kind) *model.Entity {
	switch kind {
	case model.KindProject:
		return s.Project
	case model.KindSequence:
		return s.Sequence
	case model.KindShot:
		return s.Shot
	case model.KindTask:
		return s.Task
	}
	return nil
}

func (s *Snapshot) set(kind model.Kind, e *model.Entity) {
	switch kind {
	case model.KindProject:
		s.Project = e
	case model.KindSequence:
		s.Sequence = e
	case model.KindShot:
		s.Shot = e
	case model.KindTask:
		s.Task = e
	}
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Project:  cloneEntity(s.Project),
		Sequence: cloneEntity(s.Sequence),
		Shot:     cloneEntity(s.Shot),
		Task:     cloneEntity(s.Task),
	}
}

func cloneEntity(e *model.Entity) *model.Entity {
	if e == nil {
		return nil
	}
	c := e.Clone()
	return &c
}

// Change describes one write to the store
type Change struct {
	Kind     model.Kind
	Entity   *model.Entity
	Cleared  []model.Kind // downstream kinds reset by this write
	Snapshot Snapshot     // state after the write, cascade included
}

// Store is the shared selection snapshot. A write and its downstream reset
// happen under one lock, so readers never observe a partial cascade.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]func(Change)
	nextSub int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{subs: make(map[int]func(Change))}
}

// Snapshot returns a copy of the current selection
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Get returns a copy of the selection for kind, or nil
func (s *Store) Get(kind model.Kind) *model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntity(s.snap.Get(kind))
}

// Set writes the selection for kind and resets every downstream kind.
// Subscribers are notified after the lock is released.
func (s *Store) Set(kind model.Kind, e *model.Entity) Change {
	s.mu.Lock()
	s.snap.set(kind, cloneEntity(e))
	cleared := Downstream(kind)
	for _, k := range cleared {
		s.snap.set(k, nil)
	}
	change := Change{
		Kind:     kind,
		Entity:   cloneEntity(e),
		Cleared:  cleared,
		Snapshot: s.snap.clone(),
	}
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
	return change
}

// Subscribe registers fn for every change and returns a function that
// removes it
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// LogChanges returns a subscriber that logs every write at debug level
func LogChanges(logger *slog.Logger) func(Change) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "selection")
	return func(c Change) {
		var id int
		var name string
		if c.Entity != nil {
			id, name = c.Entity.ID, c.Entity.Label()
		}
		logger.Debug("selection changed", "kind", c.Kind, "id", id, "name", name, "cleared", c.Cleared)
	}
}
