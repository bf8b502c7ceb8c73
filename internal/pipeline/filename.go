package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField matches any *MissingFieldError via errors.Is
var ErrMissingField = errors.New("missing context field")

// MissingFieldError reports a required context field that no upstream node set
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("pipeline: missing context field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// ResolveFilename derives the output name
//
//	{project}_{sequence}_{shot}_{task}_{suffix}_v{version:03d}
//
// Empty sequence, task and suffix segments are left out. A leading
// underscore on suffix is ignored. Project and shot are required.
func ResolveFilename(c Context, suffix string) (string, error) {
	if err := requireProjectShot(c); err != nil {
		return "", err
	}

	segments := []string{c.Project.Name, c.Shot.Sequence, c.Shot.Code}
	if c.Task != nil {
		segments = append(segments, c.Task.Name)
	}
	segments = append(segments, strings.TrimLeft(strings.TrimSpace(suffix), "_"))

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return fmt.Sprintf("%s_v%03d", strings.Join(parts, "_"), c.Version()), nil
}

// FolderSuggestion returns {project}/{sequence}/{shot}/render, leaving out an
// empty sequence
func FolderSuggestion(c Context) (string, error) {
	if err := requireProjectShot(c); err != nil {
		return "", err
	}
	parts := []string{c.Project.Name}
	if c.Shot.Sequence != "" {
		parts = append(parts, c.Shot.Sequence)
	}
	parts = append(parts, c.Shot.Code, "render")
	return strings.Join(parts, "/"), nil
}

func requireProjectShot(c Context) error {
	if c.Project == nil || c.Project.Name == "" {
		return &MissingFieldError{Field: "project"}
	}
	if c.Shot == nil || c.Shot.Code == "" {
		return &MissingFieldError{Field: "shot"}
	}
	return nil
}
