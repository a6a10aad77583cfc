package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
)

func TestEnsureCreatesZeroRecordOnce(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	key := dataset.Key{Release: 2, Path: "src/A.java"}

	assert.False(t, ds.Has(key))
	assert.Nil(t, ds.Get(key))

	rec := ds.Ensure(key)
	require.NotNil(t, rec)
	assert.Equal(t, dataset.Record{}, *rec)

	rec[dataset.Revisions] = 3

	again := ds.Ensure(key)
	assert.Same(t, rec, again)
	assert.Equal(t, 3, again[dataset.Revisions])
	assert.Equal(t, 1, ds.Len())
}

func TestKeysAreOrderedNumerically(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	ds.Ensure(dataset.Key{Release: 10, Path: "a"})
	ds.Ensure(dataset.Key{Release: 2, Path: "b"})
	ds.Ensure(dataset.Key{Release: 2, Path: "a"})

	assert.Equal(t, []dataset.Key{
		{Release: 2, Path: "a"},
		{Release: 2, Path: "b"},
		{Release: 10, Path: "a"},
	}, ds.Keys())
}

func TestIsBuggyOnValues(t *testing.T) {
	t.Parallel()

	byKey := map[dataset.Key]dataset.Record{
		{Release: 1, Path: "a"}: {dataset.Buggy: 1},
		{Release: 1, Path: "b"}: {},
	}

	assert.True(t, byKey[dataset.Key{Release: 1, Path: "a"}].IsBuggy())
	assert.False(t, byKey[dataset.Key{Release: 1, Path: "b"}].IsBuggy())
}

func TestSeed(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	ds.Seed([]string{"a", "b"}, 3)

	assert.Equal(t, 6, ds.Len())
	assert.True(t, ds.Has(dataset.Key{Release: 3, Path: "b"}))
	assert.False(t, ds.Has(dataset.Key{Release: 4, Path: "b"}))
}

func TestLegacyDerivedAverages(t *testing.T) {
	t.Parallel()

	var rec dataset.Record

	avgChg, avgLOC := dataset.LegacyDerivedAverages(rec)
	assert.Zero(t, avgChg)
	assert.Zero(t, avgLOC)

	rec[dataset.Revisions] = 2
	rec[dataset.LOCAdded] = 10
	rec[dataset.ChangeSetSize] = 7

	avgChg, avgLOC = dataset.LegacyDerivedAverages(rec)
	assert.Equal(t, 5, avgChg, "change-set average is derived from LOC added")
	assert.Equal(t, 3, avgLOC, "LOC-added average is derived from change-set size")
}

func TestRowsFiltersAndDerives(t *testing.T) {
	t.Parallel()

	ds := dataset.New()

	rec := ds.Ensure(dataset.Key{Release: 1, Path: "A.java"})
	rec[dataset.Revisions] = 2
	rec[dataset.LOCAdded] = 8
	rec[dataset.ChangeSetSize] = 4
	rec.MarkBuggy()

	ds.Ensure(dataset.Key{Release: 3, Path: "B.java"})
	ds.Ensure(dataset.Key{Release: 4, Path: "C.java"})

	rows := ds.Rows(2)

	require.Len(t, rows, 2)
	assert.Equal(t, dataset.Key{Release: 1, Path: "A.java"}, rows[0].Key)
	assert.Equal(t, 4, rows[0].Metrics[dataset.AvgChangeSet])
	assert.Equal(t, 2, rows[0].Metrics[dataset.AvgLOCAdded])
	assert.True(t, rows[0].Metrics.IsBuggy())
	assert.Equal(t, 3, rows[1].Release)

	assert.Zero(t, ds.Get(dataset.Key{Release: 1, Path: "A.java"})[dataset.AvgChangeSet], "export does not write back")

	assert.Equal(t, []dataset.Summary{
		{Release: 1, Files: 1, Buggy: 1},
		{Release: 3, Files: 1, Buggy: 0},
	}, dataset.Summarize(rows))
}

func TestReset(t *testing.T) {
	t.Parallel()

	ds := dataset.New()
	ds.Ensure(dataset.Key{Release: 1, Path: "x"})
	ds.Reset()

	assert.Zero(t, ds.Len())
}
