// Package history models a project's revision stream: revisions, the files
// they touch and the line-level edits applied to each file.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrStopWalk can be returned by a walk callback to end the walk early without error.
var ErrStopWalk = errors.New("stop walk")

// ChangeKind is the kind of change a revision applied to a file.
type ChangeKind int

const (
	// Add means the file was created.
	Add ChangeKind = iota
	// Modify means the file content changed in place.
	Modify
	// Delete means the file was removed.
	Delete
	// Rename means the file moved, possibly with content changes.
	Rename
	// Copy means the file was copied from another path.
	Copy
)

// String implements fmt.Stringer.
func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "add"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	case Copy:
		return "copy"
	default:
		return "unknown"
	}
}

// EditType classifies a line-level edit region.
type EditType int

const (
	// EditInsert adds lines [BeginB, EndB) of the new side.
	EditInsert EditType = iota
	// EditDelete removes lines [BeginA, EndA) of the old side.
	EditDelete
	// EditReplace replaces old lines [BeginA, EndA) with new lines [BeginB, EndB).
	EditReplace
)

// String implements fmt.Stringer.
func (t EditType) String() string {
	switch t {
	case EditInsert:
		return "insert"
	case EditDelete:
		return "delete"
	case EditReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Edit is one contiguous region of difference between two file versions.
// Offsets are 0-based, ends exclusive.
type Edit struct {
	Type   EditType
	BeginA int
	EndA   int
	BeginB int
	EndB   int
}

// LinesA returns the number of old-side lines in the edit.
func (e Edit) LinesA() int {
	return e.EndA - e.BeginA
}

// LinesB returns the number of new-side lines in the edit.
func (e Edit) LinesB() int {
	return e.EndB - e.BeginB
}

// FileChange is the change a revision applied to a single file.
type FileChange struct {
	Kind    ChangeKind
	OldPath string
	NewPath string
	Edits   []Edit
}

// Path returns the path the change is recorded under: the new path, or the
// old path for deletions.
func (fc FileChange) Path() string {
	if fc.Kind == Delete && fc.NewPath == "" {
		return fc.OldPath
	}

	return fc.NewPath
}

// Revision is one commit of the project history relative to its first parent.
type Revision struct {
	Hash      string
	Date      time.Time
	Message   string
	HasParent bool
	Changes   []FileChange
}

// Source yields revisions in a stable order. Implementations stop when the
// callback returns an error; ErrStopWalk ends the walk without error.
type Source interface {
	Walk(ctx context.Context, fn func(*Revision) error) error
}
