package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/roof.report/internal/roof/report"
)

// AssetsHost serves the echarts JavaScript bundle.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ReportPage renders an HTML page for one job's report: segment areas,
// pitch candidates and feature counts.
func ReportPage(w io.Writer, jobID string, r *report.MeasurementReport) error {
	if r == nil {
		return fmt.Errorf("no report for job %s", jobID)
	}

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(segmentsBar(jobID, r), pitchBar(r), featuresBar(r))
	return page.Render(w)
}

func baseOpts(title, subtitle string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func segmentsBar(jobID string, r *report.MeasurementReport) *charts.Bar {
	x := make([]string, 0, len(r.Segments))
	y := make([]opts.BarData, 0, len(r.Segments))
	for _, s := range r.Segments {
		x = append(x, fmt.Sprintf("#%d %s", s.ID, s.Pitch))
		y = append(y, opts.BarData{Value: s.Area, Name: fmt.Sprintf("%.1f°", s.Degrees)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(baseOpts("Roof segments",
		fmt.Sprintf("job %s: total %.2f %s, %d segments", jobID, r.Area.Total, r.Area.Unit, len(r.Segments))),
		charts.WithYAxisOpts(opts.YAxis{Name: "Area (" + r.Area.Unit + ")"}),
	)...)
	bar.SetXAxis(x).AddSeries("area", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func pitchBar(r *report.MeasurementReport) *charts.Bar {
	x := []string{"primary " + r.Pitch.Primary}
	y := []opts.BarData{{Value: r.Pitch.Degrees}}
	for _, p := range r.Pitch.All {
		x = append(x, p.Pitch)
		y = append(y, opts.BarData{Value: p.Degrees})
	}
	if c := r.Pitch.Clustered; c != nil {
		x = append(x, "clustered "+c.Pitch)
		y = append(y, opts.BarData{Value: c.Degrees})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(baseOpts("Pitch estimates",
		fmt.Sprintf("confidence %s %s", r.Accuracy.Confidence, r.Accuracy.ErrorMargin)),
		charts.WithYAxisOpts(opts.YAxis{Name: "Degrees", Max: 90}),
	)...)
	bar.SetXAxis(x).AddSeries("degrees", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func featuresBar(r *report.MeasurementReport) *charts.Bar {
	f := r.Features
	bar := charts.NewBar()
	bar.SetGlobalOptions(baseOpts("Roof features", fmt.Sprintf("%d total", f.Total))...)
	bar.SetXAxis([]string{"chimneys", "vents", "skylights", "other"}).
		AddSeries("count", []opts.BarData{
			{Value: f.Chimneys}, {Value: f.Vents}, {Value: f.Skylights}, {Value: f.Other},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
