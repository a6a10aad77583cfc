package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

const percent = 100

// TableOptions control terminal rendering.
type TableOptions struct {
	Title string
	// Label names releases; nil uses IndexLabel.
	Label   func(int) string
	NoColor bool
}

func (o TableOptions) label() func(int) string {
	if o.Label == nil {
		return IndexLabel
	}

	return o.Label
}

func (o TableOptions) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if o.NoColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}

	return c
}

func newTable(w io.Writer, title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	if title != "" {
		tbl.SetTitle(title)
	}

	return tbl
}

// PrintSummary renders per-release file and defect counts of rows.
func PrintSummary(w io.Writer, rows []dataset.Row, o TableOptions) {
	tbl := newTable(w, o.Title)
	tbl.AppendHeader(table.Row{"Release", "Files", "Buggy", "Clean", "Buggy %"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	red := o.paint(color.FgRed)
	label := o.label()

	var files, buggy int

	for _, s := range dataset.Summarize(rows) {
		files += s.Files
		buggy += s.Buggy

		tbl.AppendRow(table.Row{
			label(s.Release),
			humanize.Comma(int64(s.Files)),
			red.Sprint(humanize.Comma(int64(s.Buggy))),
			humanize.Comma(int64(s.Files - s.Buggy)),
			share(s.Buggy, s.Files),
		})
	}

	tbl.AppendFooter(table.Row{
		"Total", humanize.Comma(int64(files)), humanize.Comma(int64(buggy)),
		humanize.Comma(int64(files - buggy)), share(buggy, files),
	})
	tbl.Render()
}

func share(part, whole int) string {
	if whole == 0 {
		return "-"
	}

	return fmt.Sprintf("%.1f%%", float64(part)*percent/float64(whole))
}

// PrintDefects renders the classification of every ticket in idx, ordered by
// ticket id. Tickets without a defect range are listed with a dash.
func PrintDefects(w io.Writer, prefix string, idx *ticket.Index, o TableOptions) {
	tbl := newTable(w, o.Title)
	tbl.AppendHeader(table.Row{"Ticket", "OV", "FV", "IV", "Range", "Source"})

	yellow := o.paint(color.FgYellow)
	faint := o.paint(color.Faint)
	label := o.label()

	ids := make([]int, 0, len(idx.Classifications))
	for id := range idx.Classifications {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	for _, id := range ids {
		cls := idx.Classifications[id]

		iv := "-"
		if cls.IV.Known {
			iv = label(cls.IV.Index)
		}

		rng := faint.Sprint("-")
		if d, ok := idx.Defect(id); ok {
			rng = fmt.Sprintf("[%s, %s)", label(d.IV), label(d.FV))
		}

		source := "reported"
		if cls.Estimated {
			source = yellow.Sprint("estimated")
		} else if !cls.IV.Known {
			source = faint.Sprint("unknown")
		}

		tbl.AppendRow(table.Row{
			fmt.Sprintf("%s-%d", prefix, id), label(cls.OV), label(cls.FV), iv, rng, source,
		})
	}

	tbl.AppendFooter(table.Row{
		"Defects", humanize.Comma(int64(len(idx.Defects))),
		"Deferred", humanize.Comma(int64(idx.Deferred)),
		"Samples", humanize.Comma(int64(len(idx.Samples))),
	})
	tbl.Render()
}
