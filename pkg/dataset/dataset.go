// Package dataset holds the per-(release, file) metrics table that labels each
// release snapshot of each file as buggy or clean.
package dataset

import (
	"sort"
)

// Metric slots of a Record.
const (
	LOCTouched = iota
	Revisions
	FixCount
	LOCAdded
	MaxLOCAdded
	ChangeSetSize
	MaxChangeSet
	AvgChangeSet
	AvgLOCAdded
	Buggy

	// Slots is the width of a Record.
	Slots
)

// Record is the fixed-width metrics vector of one (release, file) pair.
// AvgChangeSet and AvgLOCAdded are never accumulated; they are derived at export.
type Record [Slots]int

// IsBuggy reports whether the record is labelled defective.
func (r Record) IsBuggy() bool {
	return r[Buggy] != 0
}

// MarkBuggy labels the record defective.
func (r *Record) MarkBuggy() {
	r[Buggy] = 1
}

// LegacyDerivedAverages computes the two derived export columns with the
// historical formulas, which are cross-wired relative to their names:
// avgLOCAdded = ChangeSetSize/Revisions and avgChangeSet = LOCAdded/Revisions.
// Both are 0 when the record has no revisions.
func LegacyDerivedAverages(r Record) (avgChangeSet, avgLOCAdded int) {
	if r[Revisions] == 0 {
		return 0, 0
	}

	avgLOCAdded = r[ChangeSetSize] / r[Revisions]
	avgChangeSet = r[LOCAdded] / r[Revisions]

	return avgChangeSet, avgLOCAdded
}

// Key identifies a record by release index and file path.
type Key struct {
	Release int
	Path    string
}

// Less orders keys by release index, then path.
func (k Key) Less(other Key) bool {
	if k.Release != other.Release {
		return k.Release < other.Release
	}

	return k.Path < other.Path
}

// Dataset is the sparse (release, path) -> Record table. A single pipeline run
// owns it; it is not safe for concurrent use.
type Dataset struct {
	records map[Key]*Record
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{records: map[Key]*Record{}}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Has reports whether a record exists for key.
func (d *Dataset) Has(key Key) bool {
	_, ok := d.records[key]

	return ok
}

// Get returns the record for key, or nil.
func (d *Dataset) Get(key Key) *Record {
	return d.records[key]
}

// Ensure returns the record for key, creating a zero record first if needed.
func (d *Dataset) Ensure(key Key) *Record {
	rec, ok := d.records[key]
	if !ok {
		rec = &Record{}
		d.records[key] = rec
	}

	return rec
}

// Seed creates zero records for every path in releases 1..upTo.
func (d *Dataset) Seed(paths []string, upTo int) {
	for release := 1; release <= upTo; release++ {
		for _, p := range paths {
			d.Ensure(Key{Release: release, Path: p})
		}
	}
}

// Keys returns all keys in (release, path) order.
func (d *Dataset) Keys() []Key {
	keys := make([]Key, 0, len(d.records))
	for k := range d.records {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	return keys
}

// Reset drops every record.
func (d *Dataset) Reset() {
	d.records = map[Key]*Record{}
}

// Row is one exported record with its derived columns filled in.
type Row struct {
	Key
	Metrics Record
}

// Rows exports records whose release index is at most upperBound+1, in
// (release, path) order, with the derived averages computed.
func (d *Dataset) Rows(upperBound int) []Row {
	rows := make([]Row, 0, len(d.records))

	for _, k := range d.Keys() {
		if k.Release > upperBound+1 {
			continue
		}

		metrics := *d.records[k]
		metrics[AvgChangeSet], metrics[AvgLOCAdded] = LegacyDerivedAverages(metrics)

		rows = append(rows, Row{Key: k, Metrics: metrics})
	}

	return rows
}

// Summary aggregates per-release label counts.
type Summary struct {
	Release int
	Files   int
	Buggy   int
}

// Summarize counts files and buggy files per release over rows.
func Summarize(rows []Row) []Summary {
	var out []Summary

	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].Release != row.Release {
			out = append(out, Summary{Release: row.Release})
		}

		s := &out[len(out)-1]
		s.Files++

		if row.Metrics.IsBuggy() {
			s.Buggy++
		}
	}

	return out
}
