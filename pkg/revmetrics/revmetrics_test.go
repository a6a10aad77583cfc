package revmetrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/history"
	"github.com/Sumatoshi-tech/defectscope/pkg/revmetrics"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

func insert(lines int) history.Edit {
	return history.Edit{Type: history.EditInsert, BeginB: 0, EndB: lines}
}

func remove(lines int) history.Edit {
	return history.Edit{Type: history.EditDelete, BeginA: 0, EndA: lines}
}

func replace(oldLines, newLines int) history.Edit {
	return history.Edit{Type: history.EditReplace, BeginA: 0, EndA: oldLines, BeginB: 0, EndB: newLines}
}

func TestCountSpans(t *testing.T) {
	t.Parallel()

	got := revmetrics.CountSpans([]history.Edit{insert(5), remove(2), replace(3, 9)})

	assert.Equal(t, revmetrics.SpanCounts{Touched: 10, Added: 5}, got)
}

func TestUpdateFirstTouchExample(t *testing.T) {
	t.Parallel()

	var rec dataset.Record

	revmetrics.Update(&rec, 3, []history.Edit{insert(5), remove(2)}, 0)

	assert.Equal(t, dataset.Record{7, 1, 0, 5, 5, 3, 3, 0, 0, 0}, rec)
}

func TestUpdateAccumulatesAndTracksMaxima(t *testing.T) {
	t.Parallel()

	var rec dataset.Record

	revmetrics.Update(&rec, 3, []history.Edit{insert(5)}, 0)
	revmetrics.Update(&rec, 1, []history.Edit{insert(2), replace(4, 10)}, 2)

	assert.Equal(t, 11, rec[dataset.LOCTouched])
	assert.Equal(t, 2, rec[dataset.Revisions])
	assert.Equal(t, 2, rec[dataset.FixCount])
	assert.Equal(t, 7, rec[dataset.LOCAdded])
	assert.Equal(t, 5, rec[dataset.MaxLOCAdded])
	assert.Equal(t, 4, rec[dataset.ChangeSetSize])
	assert.Equal(t, 3, rec[dataset.MaxChangeSet])
	assert.True(t, rec.IsBuggy(), "a fixing revision labels its own record")
}

func TestAccumulatorRespectsBoundary(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	acc := revmetrics.NewAccumulator(ds, 3)
	change := history.FileChange{Kind: history.Modify, OldPath: "A.java", NewPath: "A.java", Edits: []history.Edit{insert(1)}}

	assert.True(t, acc.Apply(2, change, 1, nil))
	assert.False(t, acc.Apply(3, change, 1, []int{4}))

	assert.Equal(t, 1, ds.Get(dataset.Key{Release: 2, Path: "A.java"})[dataset.Revisions])

	past := ds.Get(dataset.Key{Release: 3, Path: "A.java"})
	require.NotNil(t, past)
	assert.Equal(t, dataset.Record{}, *past)
	assert.Equal(t, 3, acc.Boundary())
}

func TestAccumulatorIsIdempotentAcrossFreshDatasets(t *testing.T) {
	t.Parallel()

	changes := []history.FileChange{
		{Kind: history.Add, NewPath: "A.java", Edits: []history.Edit{insert(10)}},
		{Kind: history.Modify, OldPath: "A.java", NewPath: "A.java", Edits: []history.Edit{remove(3), replace(1, 2)}},
	}

	run := func() []dataset.Row {
		ds := dataset.New()
		acc := revmetrics.NewAccumulator(ds, 5)

		for i, c := range changes {
			acc.Apply(1+i, c, len(changes), nil)
		}

		return ds.Rows(5)
	}

	assert.Equal(t, run(), run())
}

func TestMarkRange(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	existing := ds.Ensure(dataset.Key{Release: 2, Path: "A.java"})
	existing[dataset.Revisions] = 4

	marker := revmetrics.NewMarker(ds, 4)
	change := history.FileChange{Kind: history.Modify, OldPath: "A.java", NewPath: "A.java"}

	created := marker.MarkRange([]ticket.ResolvedDefect{{TicketID: 1, IV: 1, FV: 6}}, change)

	assert.Equal(t, 2, created, "releases 1 and 3 get placeholders; 2 exists; 4+ is past the boundary")
	assert.True(t, ds.Get(dataset.Key{Release: 1, Path: "A.java"}).IsBuggy())
	assert.True(t, ds.Get(dataset.Key{Release: 3, Path: "A.java"}).IsBuggy())
	assert.False(t, ds.Get(dataset.Key{Release: 2, Path: "A.java"}).IsBuggy(), "existing records are not overwritten")
	assert.Equal(t, 4, ds.Get(dataset.Key{Release: 2, Path: "A.java"})[dataset.Revisions])
	assert.False(t, ds.Has(dataset.Key{Release: 4, Path: "A.java"}))
}

func TestMarkRangeSkipsAddAndRename(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	marker := revmetrics.NewMarker(ds, 10)
	defects := []ticket.ResolvedDefect{{TicketID: 1, IV: 1, FV: 3}}

	assert.Zero(t, marker.MarkRange(defects, history.FileChange{Kind: history.Add, NewPath: "A.java"}))
	assert.Zero(t, marker.MarkRange(defects, history.FileChange{Kind: history.Rename, OldPath: "B.java", NewPath: "A.java"}))
	assert.Zero(t, marker.MarkRange(nil, history.FileChange{Kind: history.Modify, NewPath: "A.java"}))
	assert.Zero(t, ds.Len())

	assert.Equal(t, 2, marker.MarkRange(defects, history.FileChange{Kind: history.Delete, OldPath: "A.java"}))
	assert.True(t, ds.Has(dataset.Key{Release: 2, Path: "A.java"}))
}
