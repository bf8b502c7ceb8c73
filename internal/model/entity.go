package model

import "strconv"

// Kind identifies a selectable entity type in the tracking service
type Kind string

const (
	KindProject  Kind = "project"
	KindSequence Kind = "sequence"
	KindShot     Kind = "shot"
	KindTask     Kind = "task"
)

// Kinds lists every selectable kind in cascade order (upstream first)
var Kinds = []Kind{KindProject, KindSequence, KindShot, KindTask}

// Workflow status codes used by the tracking service
const (
	StatusInProgress = "ip"
	StatusActive     = "Active"
)

// EntityRef is a minimal reference to another entity (parent links)
type EntityRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Entity is a record returned by the tracking service.
// Only the fields relevant to its kind are populated.
type Entity struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Status    string      `json:"status,omitempty"`
	Sequence  *EntityRef  `json:"sequence,omitempty"`  // shots
	Shot      *EntityRef  `json:"shot,omitempty"`      // tasks
	CutIn     *int        `json:"cutIn,omitempty"`     // shots
	CutOut    *int        `json:"cutOut,omitempty"`    // shots
	Assignees []EntityRef `json:"assignees,omitempty"` // tasks
}

// Label returns the display label for the entity
func (e Entity) Label() string {
	if e.Name == "" {
		return "#" + strconv.Itoa(e.ID)
	}
	return e.Name
}

// SequenceName returns the parent sequence name of a shot, or "" if unknown
func (e Entity) SequenceName() string {
	if e.Sequence == nil {
		return ""
	}
	return e.Sequence.Name
}

// StatusIcon returns the icon for the entity's workflow status
func (e Entity) StatusIcon() string {
	switch e.Status {
	case StatusInProgress:
		return "●"
	case "fin", "apr", "cmpt":
		return "✓"
	case "hld", "omt":
		return "⊘"
	case "":
		return " "
	default:
		return "○"
	}
}

// Clone returns a deep copy of the entity
func (e Entity) Clone() Entity {
	out := e
	if e.Sequence != nil {
		seq := *e.Sequence
		out.Sequence = &seq
	}
	if e.Shot != nil {
		shot := *e.Shot
		out.Shot = &shot
	}
	if e.CutIn != nil {
		v := *e.CutIn
		out.CutIn = &v
	}
	if e.CutOut != nil {
		v := *e.CutOut
		out.CutOut = &v
	}
	if e.Assignees != nil {
		out.Assignees = append([]EntityRef(nil), e.Assignees...)
	}
	return out
}

// FindByID returns the entity with the given id, or nil
func FindByID(items []Entity, id int) *Entity {
	for i := range items {
		if items[i].ID == id {
			e := items[i].Clone()
			return &e
		}
	}
	return nil
}
