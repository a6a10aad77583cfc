package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/defectscope/pkg/dataset"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	stackFiles  = "files"

	colorBuggy = "#e5534b"
	colorClean = "#57ab5a"
)

// IndexLabel labels a release by its index.
func IndexLabel(release int) string {
	return strconv.Itoa(release)
}

// BuildChart creates a stacked bar chart of buggy and clean files per release.
// label names each release on the x axis; nil uses IndexLabel.
func BuildChart(title string, summaries []dataset.Summary, label func(int) string) *charts.Bar {
	if label == nil {
		label = IndexLabel
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Files per release by defect label"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Release"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Files"}),
	)

	labels := make([]string, len(summaries))
	buggy := make([]opts.BarData, len(summaries))
	clean := make([]opts.BarData, len(summaries))

	for i, s := range summaries {
		labels[i] = label(s.Release)
		buggy[i] = opts.BarData{Value: s.Buggy}
		clean[i] = opts.BarData{Value: s.Files - s.Buggy}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("Buggy", buggy,
		charts.WithBarChartOpts(opts.BarChart{Stack: stackFiles}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBuggy}),
	)
	bar.AddSeries("Clean", clean,
		charts.WithBarChartOpts(opts.BarChart{Stack: stackFiles}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorClean}),
	)

	return bar
}

// RenderChart writes the chart of rows as a standalone HTML page.
func RenderChart(w io.Writer, title string, rows []dataset.Row, label func(int) string) error {
	err := BuildChart(title, dataset.Summarize(rows), label).Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
