package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeStatus is the kind of a file change between two trees.
type ChangeStatus int

// Change statuses.
const (
	Added ChangeStatus = iota
	Modified
	Deleted
	Renamed
	Copied
)

func (s ChangeStatus) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// EditKind classifies a contiguous changed region.
type EditKind int

// Edit kinds.
const (
	EditInsert EditKind = iota
	EditDelete
	EditReplace
)

// Edit is a changed region: old lines [OldStart, OldEnd) became new lines
// [NewStart, NewEnd). Line numbers are 0-based.
type Edit struct {
	Kind     EditKind
	OldStart int
	OldEnd   int
	NewStart int
	NewEnd   int
}

// FileDiff is one file's change between two trees.
type FileDiff struct {
	Status  ChangeStatus
	OldPath string
	NewPath string
	Binary  bool
	Edits   []Edit
}

// DiffOptions configures tree diffs.
type DiffOptions struct {
	// DetectRenames pairs deleted and added files with similar content.
	DetectRenames bool
}

// TreeChanges diffs two trees and returns per-file edit lists. A nil oldTree
// is the empty tree. Identical trees yield no changes.
func (r *Repository) TreeChanges(oldTree, newTree *Tree, opts DiffOptions) ([]FileDiff, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return nil, nil
	}

	diffOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	defer func() { _ = diff.Free() }()

	if opts.DetectRenames {
		findOpts, findErr := git2go.DefaultDiffFindOptions()
		if findErr != nil {
			return nil, fmt.Errorf("get find options: %w", findErr)
		}

		findOpts.Flags = git2go.DiffFindRenames

		findErr = diff.FindSimilar(&findOpts)
		if findErr != nil {
			return nil, fmt.Errorf("find renames: %w", findErr)
		}
	}

	b := &editBuilder{}

	err = diff.ForEach(b.file, git2go.DiffDetailLines)
	if err != nil {
		return nil, fmt.Errorf("diff foreach: %w", err)
	}

	b.flush()

	return b.files, nil
}

// editBuilder folds libgit2 hunk lines into edits. Deletions and additions
// between two context lines form one edit.
type editBuilder struct {
	files   []FileDiff
	current int

	oldPos, newPos     int
	startOld, startNew int
	deleted, added     int
}

func (b *editBuilder) file(delta git2go.DiffDelta, _ float64) (git2go.DiffForEachHunkCallback, error) {
	b.flush()

	status, ok := statusOf(delta.Status)
	if !ok {
		b.current = -1

		return nil, nil
	}

	b.files = append(b.files, FileDiff{
		Status:  status,
		OldPath: delta.OldFile.Path,
		NewPath: delta.NewFile.Path,
		Binary:  delta.Flags&git2go.DiffFlagBinary != 0,
	})
	b.current = len(b.files) - 1

	return b.hunk, nil
}

func (b *editBuilder) hunk(h git2go.DiffHunk) (git2go.DiffForEachLineCallback, error) {
	b.flush()

	b.oldPos = h.OldStart
	if h.OldLines > 0 {
		b.oldPos--
	}

	b.newPos = h.NewStart
	if h.NewLines > 0 {
		b.newPos--
	}

	return b.line, nil
}

func (b *editBuilder) line(l git2go.DiffLine) error {
	switch l.Origin {
	case git2go.DiffLineContext:
		b.flush()
		b.oldPos++
		b.newPos++
	case git2go.DiffLineDeletion:
		b.begin()
		b.deleted++
		b.oldPos++
	case git2go.DiffLineAddition:
		b.begin()
		b.added++
		b.newPos++
	case git2go.DiffLineContextEOFNL, git2go.DiffLineAddEOFNL, git2go.DiffLineDelEOFNL,
		git2go.DiffLineFileHdr, git2go.DiffLineHunkHdr, git2go.DiffLineBinary:
	}

	return nil
}

func (b *editBuilder) begin() {
	if b.deleted == 0 && b.added == 0 {
		b.startOld = b.oldPos
		b.startNew = b.newPos
	}
}

func (b *editBuilder) flush() {
	if b.deleted == 0 && b.added == 0 {
		return
	}

	kind := EditReplace

	switch {
	case b.deleted == 0:
		kind = EditInsert
	case b.added == 0:
		kind = EditDelete
	}

	if b.current >= 0 && b.current < len(b.files) {
		f := &b.files[b.current]
		f.Edits = append(f.Edits, Edit{
			Kind:     kind,
			OldStart: b.startOld,
			OldEnd:   b.startOld + b.deleted,
			NewStart: b.startNew,
			NewEnd:   b.startNew + b.added,
		})
	}

	b.deleted, b.added = 0, 0
}

func statusOf(d git2go.Delta) (ChangeStatus, bool) {
	switch d {
	case git2go.DeltaAdded:
		return Added, true
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		return Modified, true
	case git2go.DeltaDeleted:
		return Deleted, true
	case git2go.DeltaRenamed:
		return Renamed, true
	case git2go.DeltaCopied:
		return Copied, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return 0, false
	default:
		return 0, false
	}
}
