// Package charts renders per-job visualisations: a static pitch histogram
// PNG from the measurement stage and an interactive report page.
package charts

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/roof.report/internal/roof/measure"
)

// HistogramFileName is the PNG written next to each job's report.
const HistogramFileName = "pitch_histogram.png"

var (
	barColor     = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	primaryColor = color.RGBA{R: 253, G: 231, B: 37, A: 255}
)

// PitchHistogramPNG draws the face-angle histogram with the primary bin
// highlighted and writes it to w as PNG.
func PitchHistogramPNG(w io.Writer, h measure.HistogramPitch) error {
	if len(h.Counts) == 0 {
		return fmt.Errorf("empty pitch histogram")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Roof face pitch (%d upward faces)", h.Faces)
	p.X.Label.Text = "Pitch (°)"
	p.Y.Label.Text = "Faces"

	values := make(plotter.Values, len(h.Counts))
	primary := make(plotter.Values, len(h.Counts))
	best := 0
	for i, c := range h.Counts {
		values[i] = float64(c)
		if c > h.Counts[best] {
			best = i
		}
	}
	if h.Primary.Known {
		primary[best] = values[best]
		values[best] = 0
	}

	width := vg.Points(8)
	bars, err := plotter.NewBarChart(values, width)
	if err != nil {
		return fmt.Errorf("histogram bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	top, err := plotter.NewBarChart(primary, width)
	if err != nil {
		return fmt.Errorf("primary bar: %w", err)
	}
	top.Color = primaryColor
	top.LineStyle.Width = 0
	top.StackOn(bars)
	p.Add(bars, top)

	if h.Primary.Known {
		p.Legend.Add(fmt.Sprintf("primary %s (%.1f°)", h.Primary.Notation, h.Primary.Degrees), top)
		p.Legend.Top = true
	}

	labels := make([]string, len(h.Counts))
	for i := range labels {
		if i%6 == 0 {
			labels[i] = fmt.Sprintf("%.0f", float64(i)*h.BinWidth)
		}
	}
	p.NominalX(labels...)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
