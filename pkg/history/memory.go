package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// MemorySource serves revisions held in memory, ordered by date with ties
// kept in insertion order.
type MemorySource struct {
	revisions []*Revision
}

// NewMemorySource creates a source over the given revisions.
func NewMemorySource(revisions ...*Revision) *MemorySource {
	src := &MemorySource{revisions: append([]*Revision(nil), revisions...)}

	sort.SliceStable(src.revisions, func(i, j int) bool {
		return src.revisions[i].Date.Before(src.revisions[j].Date)
	})

	return src
}

// Len returns the number of revisions.
func (m *MemorySource) Len() int {
	return len(m.revisions)
}

// Walk implements Source.
func (m *MemorySource) Walk(ctx context.Context, fn func(*Revision) error) error {
	for _, rev := range m.revisions {
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("walk revisions: %w", err)
		}

		err = fn(rev)
		if errors.Is(err, ErrStopWalk) {
			return nil
		}

		if err != nil {
			return err
		}
	}

	return nil
}
