package release_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectscope/pkg/release"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()

	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)

	return d
}

func newTimeline(t *testing.T) *release.Timeline {
	t.Helper()

	tl, err := release.NewTimeline([]release.Release{
		{Name: "3.0", Date: date(t, "2021-01-01")},
		{Name: "1.0", Date: date(t, "2020-01-01")},
		{Name: "2.0", Date: date(t, "2020-06-01")},
	})
	require.NoError(t, err)

	return tl
}

func TestNewTimelineAssignsIndicesByDate(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)
	rels := tl.Releases()

	require.Len(t, rels, 3)
	assert.Equal(t, "1.0", rels[0].Name)
	assert.Equal(t, 1, rels[0].Index)
	assert.Equal(t, "2.0", rels[1].Name)
	assert.Equal(t, 2, rels[1].Index)
	assert.Equal(t, "3.0", rels[2].Name)
	assert.Equal(t, 3, rels[2].Index)
	assert.Equal(t, 3, tl.Len())
}

func TestNewTimelineEmpty(t *testing.T) {
	t.Parallel()

	_, err := release.NewTimeline(nil)
	require.ErrorIs(t, err, release.ErrNoReleases)
}

func TestNewTimelineRejectsUnnamed(t *testing.T) {
	t.Parallel()

	_, err := release.NewTimeline([]release.Release{{Date: date(t, "2020-01-01")}})
	require.ErrorIs(t, err, release.ErrEmptyName)
}

func TestSameDayReleasesShareIndex(t *testing.T) {
	t.Parallel()

	tl, err := release.NewTimeline([]release.Release{
		{Name: "1.0", Date: date(t, "2020-01-01")},
		{Name: "1.0.1", Date: date(t, "2020-03-01")},
		{Name: "2.0-beta", Date: date(t, "2020-03-01")},
		{Name: "2.0", Date: date(t, "2020-05-01")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, tl.Len())

	beta, ok := tl.ByName("2.0-beta")
	require.True(t, ok)
	assert.Equal(t, 2, beta.Index)

	final, ok := tl.ByName("2.0")
	require.True(t, ok)
	assert.Equal(t, 3, final.Index)
}

func TestResolveIndex(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)

	tests := []struct {
		name string
		date string
		want int
	}{
		{"before first", "2019-05-05", 1},
		{"equal to release counts", "2020-06-01", 2},
		{"between releases", "2020-03-01", 2},
		{"after fix date", "2020-08-01", 3},
		{"after all releases", "2022-01-01", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tl.ResolveIndex(date(t, tt.date)))
		})
	}
}

func TestResolveIndexIgnoresTimeOfDay(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)
	late := time.Date(2020, 6, 1, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 2, tl.ResolveIndex(late))
}

func TestResolveIndexMonotonic(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)
	start := date(t, "2019-10-01")
	prev := 0

	for day := range 600 {
		got := tl.ResolveIndex(start.AddDate(0, 0, day))
		assert.GreaterOrEqual(t, got, prev)

		prev = got
	}
}

func TestCommitIndexIsStrictlyAfter(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)

	assert.Equal(t, 1, tl.CommitIndex(date(t, "2019-12-31")))
	assert.Equal(t, 2, tl.CommitIndex(date(t, "2020-01-01")))
	assert.Equal(t, 3, tl.CommitIndex(date(t, "2020-06-01")))
	assert.Equal(t, 3, tl.CommitIndex(date(t, "2023-01-01")))
}

func TestFirstNamedBefore(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)

	rel, ok := tl.FirstNamedBefore([]string{"3.0", "2.0"}, date(t, "2021-06-01"))
	require.True(t, ok)
	assert.Equal(t, 2, rel.Index)

	rel, ok = tl.FirstNamedBefore([]string{"2.0", "3.0"}, date(t, "2020-07-01"))
	require.True(t, ok)
	assert.Equal(t, 2, rel.Index)

	_, ok = tl.FirstNamedBefore([]string{"2.0"}, date(t, "2020-06-01"))
	assert.False(t, ok, "a release dated on the creation day is not before it")

	_, ok = tl.FirstNamedBefore([]string{"9.9"}, date(t, "2030-01-01"))
	assert.False(t, ok)

	_, ok = tl.FirstNamedBefore(nil, date(t, "2030-01-01"))
	assert.False(t, ok)
}

func TestAtAndLast(t *testing.T) {
	t.Parallel()

	tl := newTimeline(t)

	rel, ok := tl.At(2)
	require.True(t, ok)
	assert.Equal(t, "2.0", rel.Name)

	_, ok = tl.At(0)
	assert.False(t, ok)

	assert.Equal(t, "3.0", tl.Last().Name)
	assert.Equal(t, 1, release.DefaultUpperBound(3))
	assert.Equal(t, 5, release.DefaultUpperBound(10))
}
