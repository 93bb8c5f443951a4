package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/signalnine/bgjit/internal/result"
)

// RenderHTML writes an interactive page with per-cell average times and ratios.
func RenderHTML(title string, records []result.TrialRecord, w io.Writer) error {
	if len(records) == 0 {
		return ErrNoRecords
	}
	x := make([]string, len(records))
	jit := make([]opts.BarData, len(records))
	bg := make([]opts.BarData, len(records))
	ratio := make([]opts.LineData, len(records))
	for i, r := range records {
		x[i] = fmt.Sprintf("%s n=%d w=%d", r.Spec.Primitive, r.Spec.Num, r.Spec.Width)
		jit[i] = opts.BarData{Value: r.JIT.AvgTime}
		bg[i] = opts.BarData{Value: r.Background.AvgTime}
		ratio[i] = opts.LineData{Value: r.BackgroundToJITRatio}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Average time per cell", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(x).
		AddSeries("JIT", jit).
		AddSeries("Background", bg)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Background / JIT ratio"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("ratio", ratio,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar, line)
	return page.Render(w)
}

// RenderPNG saves a bar chart of the mean background/JIT ratio per primitive.
func RenderPNG(s *Summary, path string) error {
	if s == nil || len(s.Primitives) == 0 {
		return ErrNoRecords
	}
	p := plot.New()
	p.Title.Text = "Mean background / JIT ratio per primitive"
	p.Y.Label.Text = "ratio"

	vals := make(plotter.Values, len(s.Primitives))
	names := make([]string, len(s.Primitives))
	for i, ps := range s.Primitives {
		vals[i] = ps.MeanRatio
		names[i] = ps.Primitive
	}
	bars, err := plotter.NewBarChart(vals, vg.Points(30))
	if err != nil {
		return fmt.Errorf("building ratio chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
