// Package release orders a project's releases in time and resolves dates to
// 1-based release indices.
package release

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNoReleases is returned when a timeline is built from an empty release list.
var ErrNoReleases = errors.New("no dated releases")

// ErrEmptyName is returned when a release carries no name.
var ErrEmptyName = errors.New("release name is empty")

// Release is a named, dated project release.
type Release struct {
	Name  string
	Date  time.Time
	Index int
}

// Timeline is an immutable, date-ordered list of releases with dense 1-based indices.
// Releases published on the same day share one index.
type Timeline struct {
	releases []Release
	byName   map[string]int
	count    int
}

// Day truncates t to its calendar day in UTC. Time-of-day is discarded everywhere
// dates are compared.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewTimeline sorts releases by date and assigns indices 1..N, one per distinct
// release day, in ascending order. Same-day releases keep their input order.
func NewTimeline(releases []Release) (*Timeline, error) {
	if len(releases) == 0 {
		return nil, ErrNoReleases
	}

	sorted := make([]Release, len(releases))

	for i, rel := range releases {
		if rel.Name == "" {
			return nil, fmt.Errorf("release %d: %w", i, ErrEmptyName)
		}

		sorted[i] = Release{Name: rel.Name, Date: Day(rel.Date)}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byName := make(map[string]int, len(sorted))
	index := 0

	for i := range sorted {
		if i == 0 || !sorted[i].Date.Equal(sorted[i-1].Date) {
			index++
		}

		sorted[i].Index = index

		if _, seen := byName[sorted[i].Name]; !seen {
			byName[sorted[i].Name] = i
		}
	}

	return &Timeline{releases: sorted, byName: byName, count: index}, nil
}

// Len returns the number of release indices (distinct release days).
func (tl *Timeline) Len() int {
	return tl.count
}

// Releases returns a copy of the ordered releases.
func (tl *Timeline) Releases() []Release {
	out := make([]Release, len(tl.releases))
	copy(out, tl.releases)

	return out
}

// Last returns the most recent release.
func (tl *Timeline) Last() Release {
	return tl.releases[len(tl.releases)-1]
}

// At returns the first release carrying the given 1-based index.
func (tl *Timeline) At(index int) (Release, bool) {
	for _, rel := range tl.releases {
		if rel.Index == index {
			return rel, true
		}
	}

	return Release{}, false
}

// ByName returns the earliest release carrying the given name.
func (tl *Timeline) ByName(name string) (Release, bool) {
	pos, ok := tl.byName[name]
	if !ok {
		return Release{}, false
	}

	return tl.releases[pos], true
}

// ResolveIndex returns the index of the first release dated on or after date.
// Dates past every release resolve to the last release rather than failing.
// Opening and fixed versions of tickets are both resolved this way.
func (tl *Timeline) ResolveIndex(date time.Time) int {
	day := Day(date)

	for _, rel := range tl.releases {
		if !rel.Date.Before(day) {
			return rel.Index
		}
	}

	return tl.Last().Index
}

// CommitIndex returns the release a revision dated at date contributes to: the
// first release dated strictly after it, or the last release.
func (tl *Timeline) CommitIndex(date time.Time) int {
	day := Day(date)

	for _, rel := range tl.releases {
		if rel.Date.After(day) {
			return rel.Index
		}
	}

	return tl.Last().Index
}

// DefaultUpperBound is the walk-forward boundary convention: the first half of
// the release indices.
func DefaultUpperBound(indexCount int) int {
	return indexCount / 2
}

// FirstNamedBefore returns the earliest release whose name appears in names and
// whose date is strictly before the given date.
func (tl *Timeline) FirstNamedBefore(names []string, before time.Time) (Release, bool) {
	if len(names) == 0 {
		return Release{}, false
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	day := Day(before)

	for _, rel := range tl.releases {
		if _, ok := wanted[rel.Name]; ok && rel.Date.Before(day) {
			return rel, true
		}
	}

	return Release{}, false
}
