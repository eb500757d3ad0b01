package undp

import (
	"errors"
	"fmt"
)

// ErrResumeTargetNotFound is returned when a resume target never appeared
// during the walk, which means nothing at that level was processed.
var ErrResumeTargetNotFound = errors.New("resume target not found")

// Cursor resumes an interrupted walk at a given operating unit and project
// without persisted checkpoint state.
//
// Units are skipped until the target unit is seen; that unit is processed.
// Projects are then skipped until the target project is seen, normally in
// that first unit; once it is, every later unit is processed in full. A
// target that never appears keeps its level skipped to the end of the walk.
// Empty targets disable skipping at their level.
type Cursor struct {
	unitTarget    string
	projectTarget string

	skipUnit    bool
	skipProject bool
}

// NewCursor creates a cursor resuming at unitID / projectID.
func NewCursor(unitID, projectID string) *Cursor {
	return &Cursor{
		unitTarget:    unitID,
		projectTarget: projectID,
		skipUnit:      unitID != "",
		skipProject:   projectID != "",
	}
}

// VisitUnit reports whether the unit should be processed.
func (c *Cursor) VisitUnit(id string) bool {
	if c.skipUnit {
		if id != c.unitTarget {
			return false
		}
		c.skipUnit = false
	}
	return true
}

// VisitProject reports whether the project should be processed.
func (c *Cursor) VisitProject(id string) bool {
	if c.skipProject {
		if id != c.projectTarget {
			return false
		}
		c.skipProject = false
	}
	return true
}

// Skipping reports whether the cursor is still looking for a target.
func (c *Cursor) Skipping() bool {
	return c.skipUnit || c.skipProject
}

// Err reports a resume target that was never reached.
func (c *Cursor) Err() error {
	switch {
	case c.skipUnit:
		return fmt.Errorf("%w: operating unit %q", ErrResumeTargetNotFound, c.unitTarget)
	case c.skipProject:
		return fmt.Errorf("%w: project %q in operating unit %q", ErrResumeTargetNotFound, c.projectTarget, c.unitTarget)
	default:
		return nil
	}
}
