// Package revmetrics accumulates per-file change metrics from revisions into a
// dataset and labels the release ranges of resolved defects as buggy.
package revmetrics

import (
	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/history"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

// SpanCounts are the lines one revision touched and added in one file.
type SpanCounts struct {
	Touched int
	Added   int
}

// CountSpans sums an edit list. Inserted lines count as touched and added,
// deleted lines as touched, and replacements count only their old-side lines
// as touched; lines added by a replacement are not counted as added.
func CountSpans(edits []history.Edit) SpanCounts {
	var c SpanCounts

	for _, e := range edits {
		switch e.Type {
		case history.EditInsert:
			c.Added += e.LinesB()
			c.Touched += e.LinesB()
		case history.EditDelete:
			c.Touched += e.LinesA()
		case history.EditReplace:
			c.Touched += e.LinesA()
		}
	}

	return c
}

// Update folds one revision of one file into rec. changeSetSize is the number
// of files the revision touched; fixes is the number of tracked tickets the
// revision message references. A fixing revision labels rec buggy.
func Update(rec *dataset.Record, changeSetSize int, edits []history.Edit, fixes int) {
	spans := CountSpans(edits)

	rec[dataset.LOCTouched] += spans.Touched
	rec[dataset.Revisions]++

	if fixes > 0 {
		rec[dataset.FixCount] += fixes
		rec.MarkBuggy()
	}

	rec[dataset.LOCAdded] += spans.Added
	rec[dataset.MaxLOCAdded] = max(rec[dataset.MaxLOCAdded], spans.Added)

	rec[dataset.ChangeSetSize] += changeSetSize
	rec[dataset.MaxChangeSet] = max(rec[dataset.MaxChangeSet], changeSetSize)
}

// Accumulator applies revision changes to a dataset up to a walk-forward boundary.
type Accumulator struct {
	data     *dataset.Dataset
	boundary int
}

// NewAccumulator creates an accumulator. Releases at or past boundary are
// never accumulated.
func NewAccumulator(data *dataset.Dataset, boundary int) *Accumulator {
	return &Accumulator{data: data, boundary: boundary}
}

// Boundary returns the exclusive release boundary.
func (a *Accumulator) Boundary() int {
	return a.boundary
}

// Apply ensures the record of (release, change path) exists and, when release
// is before the boundary, folds the change into it. It reports whether the
// record was updated.
func (a *Accumulator) Apply(release int, change history.FileChange, changeSetSize int, fixes []int) bool {
	rec := a.data.Ensure(dataset.Key{Release: release, Path: change.Path()})

	if release >= a.boundary {
		return false
	}

	Update(rec, changeSetSize, change.Edits, len(fixes))

	return true
}

// Marker labels past releases of a file buggy when a fixing revision touches it.
type Marker struct {
	data     *dataset.Dataset
	boundary int
}

// NewMarker creates a marker bounded by the exclusive release boundary.
func NewMarker(data *dataset.Dataset, boundary int) *Marker {
	return &Marker{data: data, boundary: boundary}
}

// Marks reports whether a change of this kind can prove earlier releases
// defective. Additions and renames cannot.
func Marks(kind history.ChangeKind) bool {
	return kind == history.Modify || kind == history.Delete
}

// MarkRange labels (v, path) buggy for every release v in [IV, FV) below the
// boundary for each matched defect, creating a placeholder record when none
// exists. Existing records are left untouched. It returns the number of
// placeholder records created.
func (m *Marker) MarkRange(defects []ticket.ResolvedDefect, change history.FileChange) int {
	if len(defects) == 0 || !Marks(change.Kind) {
		return 0
	}

	marked := 0
	path := change.Path()

	for _, d := range defects {
		for v := d.IV; v < d.FV && v < m.boundary; v++ {
			key := dataset.Key{Release: v, Path: path}
			if m.data.Has(key) {
				continue
			}

			m.data.Ensure(key).MarkBuggy()

			marked++
		}
	}

	return marked
}
