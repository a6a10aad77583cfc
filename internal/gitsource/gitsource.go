// Package gitsource streams a libgit2 repository's commits as history revisions.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/defectscope/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectscope/pkg/history"
)

// Options configures the walk.
type Options struct {
	Since         time.Time
	FirstParent   bool
	NewestFirst   bool
	DetectRenames bool
}

// Source is a history.Source over a git repository.
type Source struct {
	repo   *gitlib.Repository
	opts   Options
	logger *slog.Logger
}

// Open opens the repository at path.
func Open(path string, opts Options, logger *slog.Logger) (*Source, error) {
	repo, err := gitlib.OpenRepository(path)
	if err != nil {
		return nil, err
	}

	return New(repo, opts, logger), nil
}

// New wraps an open repository. The source takes ownership of repo.
func New(repo *gitlib.Repository, opts Options, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{repo: repo, opts: opts, logger: logger}
}

// Close releases the repository.
func (s *Source) Close() {
	s.repo.Free()
}

// HeadFiles lists the files present at HEAD.
func (s *Source) HeadFiles() ([]string, error) {
	files, err := s.repo.HeadFiles()
	if err != nil {
		return nil, fmt.Errorf("list HEAD files: %w", err)
	}

	return files, nil
}

// Walk implements history.Source. Root commits are delivered with
// HasParent=false and no changes. A commit whose diff fails is logged and
// skipped.
func (s *Source) Walk(ctx context.Context, fn func(*history.Revision) error) error {
	iter, err := s.repo.Log(gitlib.LogOptions{
		Since:       s.opts.Since,
		FirstParent: s.opts.FirstParent,
		NewestFirst: s.opts.NewestFirst,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	err = iter.ForEach(func(c *gitlib.Commit) error {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return fmt.Errorf("walk revisions: %w", ctxErr)
		}

		rev, revErr := s.revision(c)
		if revErr != nil {
			s.logger.WarnContext(ctx, "skipping revision", "hash", c.Hash().Short(), "error", revErr)

			return nil
		}

		return fn(rev)
	})
	if errors.Is(err, history.ErrStopWalk) {
		return nil
	}

	return err
}

func (s *Source) revision(c *gitlib.Commit) (*history.Revision, error) {
	rev := &history.Revision{
		Hash:      c.Hash().String(),
		Date:      c.When(),
		Message:   c.Message(),
		HasParent: c.NumParents() > 0,
	}

	if !rev.HasParent {
		return rev, nil
	}

	diffs, err := c.Changes(gitlib.DiffOptions{DetectRenames: s.opts.DetectRenames})
	if err != nil {
		return nil, err
	}

	rev.Changes = make([]history.FileChange, 0, len(diffs))

	for _, d := range diffs {
		rev.Changes = append(rev.Changes, convert(d))
	}

	return rev, nil
}

func convert(d gitlib.FileDiff) history.FileChange {
	fc := history.FileChange{
		Kind:    kindOf(d.Status),
		OldPath: d.OldPath,
		NewPath: d.NewPath,
		Edits:   make([]history.Edit, 0, len(d.Edits)),
	}

	switch fc.Kind {
	case history.Add:
		fc.OldPath = ""
	case history.Delete:
		fc.NewPath = ""
	case history.Modify, history.Rename, history.Copy:
	}

	for _, e := range d.Edits {
		fc.Edits = append(fc.Edits, history.Edit{
			Type:   editTypeOf(e.Kind),
			BeginA: e.OldStart,
			EndA:   e.OldEnd,
			BeginB: e.NewStart,
			EndB:   e.NewEnd,
		})
	}

	return fc
}

func kindOf(s gitlib.ChangeStatus) history.ChangeKind {
	switch s {
	case gitlib.Added:
		return history.Add
	case gitlib.Deleted:
		return history.Delete
	case gitlib.Renamed:
		return history.Rename
	case gitlib.Copied:
		return history.Copy
	case gitlib.Modified:
		return history.Modify
	default:
		return history.Modify
	}
}

func editTypeOf(k gitlib.EditKind) history.EditType {
	switch k {
	case gitlib.EditInsert:
		return history.EditInsert
	case gitlib.EditDelete:
		return history.EditDelete
	case gitlib.EditReplace:
		return history.EditReplace
	default:
		return history.EditReplace
	}
}
