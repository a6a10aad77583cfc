package export_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/defectscope/internal/export"
	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

func sampleRows() []dataset.Row {
	return []dataset.Row{
		{Key: dataset.Key{Release: 1, Path: "src/Foo.java"}, Metrics: dataset.Record{5, 1, 0, 5, 5, 2, 2, 5, 2, 0}},
		{Key: dataset.Key{Release: 1, Path: "src/Gone.java"}, Metrics: dataset.Record{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
		{Key: dataset.Key{Release: 2, Path: "src/Foo.java"}, Metrics: dataset.Record{3, 1, 1, 0, 0, 2, 2, 0, 2, 1}},
	}
}

func TestWriteCSV_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, sampleRows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "Version Number,Filename,LOC_Touched,Number_Revisions,NumberBugFix,LOC_Added,"+
		"MAX_LOC_Added,ChgSetSize,Max_ChgSet,AVG_ChgSet,Avg_LOC_Added,Buggy", lines[0])
	assert.Equal(t, "1,src/Foo.java,5,1,0,5,5,2,2,5,2,No", lines[1])
	assert.Equal(t, "1,src/Gone.java,0,0,0,0,0,0,0,0,0,Yes", lines[2])
	assert.Equal(t, "2,src/Foo.java,3,1,1,0,0,2,2,0,2,Yes", lines[3])
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, sampleRows()))

	rows, err := export.ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), rows)

	_, err = export.ReadCSV(strings.NewReader("a,b\n"))
	require.Error(t, err)

	bad := strings.Replace(buf.String(), ",No\n", ",Maybe\n", 1)
	_, err = export.ReadCSV(strings.NewReader(bad))
	require.ErrorIs(t, err, export.ErrBadLabel)
}

func TestSaveLoadCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, tc := range []struct {
		name     string
		compress bool
	}{
		{"dataset.csv", false},
		{"dataset.csv.lz4", false},
		{"dataset.csv.lz4", true},
	} {
		path := filepath.Join(dir, tc.name)

		require.NoError(t, export.SaveCSV(path, sampleRows(), tc.compress))

		rows, err := export.LoadCSV(path)
		require.NoError(t, err, tc.name)
		assert.Equal(t, sampleRows(), rows, tc.name)
	}

	_, err := export.LoadCSV(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
}

func TestStore_SaveAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := export.OpenStore(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, store.Close()) })

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	run := export.Run{ID: "run-1", Project: "PRJ", UpperBound: 3, CreatedAt: created}
	defects := []ticket.ResolvedDefect{{TicketID: 7, IV: 1, FV: 4}, {TicketID: 9, IV: 2, FV: 3}}

	require.NoError(t, store.Save(ctx, run, sampleRows(), defects, map[int]bool{9: true}))

	rows, err := store.Rows(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), rows)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "PRJ", runs[0].Project)
	assert.True(t, created.Equal(runs[0].CreatedAt))

	// A repeated run id fails as a whole and leaves nothing behind.
	run.CreatedAt = created.Add(time.Hour)
	require.Error(t, store.Save(ctx, run, sampleRows(), defects, nil))

	runs, err = store.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	other, err := store.Rows(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRenderChart(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, export.RenderChart(&buf, "PRJ defects", sampleRows(), func(r int) string {
		return map[int]string{1: "v1.0", 2: "v1.1"}[r]
	}))

	html := buf.String()
	assert.Contains(t, html, "PRJ defects")
	assert.Contains(t, html, "v1.1")
	assert.Contains(t, html, "Buggy")
	assert.Contains(t, html, "Clean")
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	export.PrintSummary(&buf, sampleRows(), export.TableOptions{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "66.7%")
	assert.NotContains(t, out, "\x1b[")
}

func TestPrintDefects(t *testing.T) {
	t.Parallel()

	idx := &ticket.Index{
		Defects: []ticket.ResolvedDefect{{TicketID: 7, IV: 1, FV: 4}, {TicketID: 9, IV: 2, FV: 3}},
		Classifications: map[int]ticket.Classification{
			7:  {TicketID: 7, OV: 3, FV: 4, IV: ticket.KnownIV(1)},
			9:  {TicketID: 9, OV: 2, FV: 3, IV: ticket.KnownIV(2), Estimated: true},
			11: {TicketID: 11, OV: 2, FV: 2},
		},
		Deferred: 2,
	}

	var buf bytes.Buffer
	export.PrintDefects(&buf, "PRJ", idx, export.TableOptions{NoColor: true})

	out := buf.String()
	assert.Contains(t, out, "PRJ-7")
	assert.Contains(t, out, "[1, 4)")
	assert.Contains(t, out, "estimated")
	assert.Contains(t, out, "unknown")
	assert.Less(t, strings.Index(out, "PRJ-7"), strings.Index(out, "PRJ-9"))
}
