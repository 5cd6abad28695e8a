// Package measure extracts area, bounding dimensions and pitch from a
// reconstructed roof mesh.
//
// Two pitch estimators are exposed side by side: HistogramPitch bins the
// slope of every upward-facing face, ClusterPitch takes the slope of the
// largest planar segment. They are independent cross-checks.
package measure

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/mesh"
	"github.com/banshee-data/roof.report/internal/roof/pitch"
	"github.com/banshee-data/roof.report/internal/roof/segment"
	"github.com/banshee-data/roof.report/internal/units"
)

// Histogram defaults.
const (
	DefaultPitchBins = 36
	DefaultPitchTopN = 3
	maxPitchDegrees  = 90.0
)

// Calibration maps mesh units to report units.
type Calibration struct {
	AreaFactor   float64 // mesh units² → ft²
	LengthFactor float64 // mesh units → ft
}

// DefaultCalibration assumes the mesh is in metres.
func DefaultCalibration() Calibration {
	return Calibration{
		AreaFactor:   units.SquareMetresToSquareFeet,
		LengthFactor: units.MetresToFeet,
	}
}

// Dimensions are bounding-box extents in feet.
type Dimensions struct {
	Length float64 // Δx
	Width  float64 // Δy
	Height float64 // Δz
}

// HistogramPitch is the result of the face-angle histogram estimator.
type HistogramPitch struct {
	Primary  pitch.Pitch
	All      []pitch.Pitch // most populated bins first, at most TopN
	Counts   []int
	BinWidth float64 // degrees
	Faces    int     // upward-facing faces considered
}

// Measurements is everything the engine derives from one mesh.
type Measurements struct {
	Area       float64 // ft²
	Dimensions Dimensions
	Histogram  HistogramPitch
	Segments   []segment.Segment
	Clustered  pitch.Pitch
	Vertices   int
	Faces      int
}

// Engine computes measurements from a mesh. The zero value is not usable;
// construct with NewEngine.
type Engine struct {
	Calibration Calibration
	Bins        int
	TopN        int
	Up          r3.Vector
	Segmenter   *segment.Segmenter
}

// NewEngine returns an Engine with default calibration and histogram.
func NewEngine() *Engine {
	return &Engine{
		Calibration: DefaultCalibration(),
		Bins:        DefaultPitchBins,
		TopN:        DefaultPitchTopN,
		Up:          pitch.Up,
		Segmenter:   segment.NewSegmenter(),
	}
}

// Area returns Σ(face area) × AreaFactor.
func (e *Engine) Area(m *mesh.Mesh) float64 {
	return m.TotalArea() * e.Calibration.AreaFactor
}

// Dimensions returns the axis-aligned bounding box extents × LengthFactor.
func (e *Engine) Dimensions(m *mesh.Mesh) Dimensions {
	min, max := m.Bounds()
	d := max.Sub(min)
	return Dimensions{
		Length: d.X * e.Calibration.LengthFactor,
		Width:  d.Y * e.Calibration.LengthFactor,
		Height: d.Z * e.Calibration.LengthFactor,
	}
}

// HistogramPitch bins the slope of every upward-facing face into Bins
// equal bins over [0°, 90°). The primary pitch is the mean angle of the
// most populated bin. With no upward-facing faces the pitch is unknown.
func (e *Engine) HistogramPitch(m *mesh.Mesh) HistogramPitch {
	bins := e.Bins
	if bins <= 0 {
		bins = DefaultPitchBins
	}
	res := HistogramPitch{
		Primary:  pitch.Unknown,
		Counts:   make([]int, bins),
		BinWidth: maxPitchDegrees / float64(bins),
	}

	angles := make([]float64, 0, m.NumFaces())
	for i := 0; i < m.NumFaces(); i++ {
		n := m.Normal(i)
		if m.Area(i) == 0 || !pitch.UpwardFacing(n, e.Up) {
			continue
		}
		a := pitch.AngleFromNormal(n, e.Up)
		if a >= maxPitchDegrees {
			a = math.Nextafter(maxPitchDegrees, 0)
		}
		angles = append(angles, a)
	}
	res.Faces = len(angles)
	if len(angles) == 0 {
		return res
	}

	sort.Float64s(angles)
	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, maxPitchDegrees)
	counts := stat.Histogram(nil, dividers, angles, nil)

	// angles are sorted, so each bin's members are a contiguous run
	means := make([]float64, bins)
	start := 0
	for b, c := range counts {
		n := int(c)
		res.Counts[b] = n
		if n > 0 {
			means[b] = stat.Mean(angles[start:start+n], nil)
		}
		start += n
	}

	order := make([]int, bins)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return res.Counts[order[i]] > res.Counts[order[j]]
	})

	topN := e.TopN
	if topN <= 0 {
		topN = DefaultPitchTopN
	}
	for _, b := range order {
		if res.Counts[b] == 0 || len(res.All) == topN {
			break
		}
		res.All = append(res.All, pitch.FromDegrees(means[b]))
	}
	res.Primary = res.All[0]
	return res
}

// ClusterPitch is the pitch of the largest segment.
func (e *Engine) ClusterPitch(segments []segment.Segment) pitch.Pitch {
	p, _ := segment.PrimaryPitch(segments)
	return p
}

// Measure runs every estimator on m. Histogram and segmentation run
// concurrently; the mesh is read-only so they share it without locking.
// A degenerate or non-finite mesh, or a panic in either estimator, returns
// an error wrapping roof.ErrMeasurementExtractionFailed.
func (e *Engine) Measure(m *mesh.Mesh) (*Measurements, error) {
	if m == nil || m.NumFaces() == 0 {
		return nil, fmt.Errorf("empty mesh: %w", roof.ErrMeasurementExtractionFailed)
	}
	if m.TotalArea() == 0 {
		return nil, fmt.Errorf("mesh has zero surface area: %w", roof.ErrMeasurementExtractionFailed)
	}

	out := &Measurements{
		Area:       e.Area(m),
		Dimensions: e.Dimensions(m),
		Vertices:   len(m.Vertices),
		Faces:      m.NumFaces(),
	}
	// coordinates near the float64 limit overflow in the cross product
	d := out.Dimensions
	if !isFinite(out.Area) || !isFinite(d.Length) || !isFinite(d.Width) || !isFinite(d.Height) {
		return nil, fmt.Errorf("mesh area or extent is not finite: %w", roof.ErrMeasurementExtractionFailed)
	}

	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverEstimator("histogram", &err)
		out.Histogram = e.HistogramPitch(m)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverEstimator("segmentation", &err)
		seg := segment.NewSegmenter()
		if e.Segmenter != nil {
			*seg = *e.Segmenter
		}
		// segment areas use the same calibration as the total
		seg.AreaFactor = e.Calibration.AreaFactor
		out.Segments = seg.Segment(m)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Clustered = e.ClusterPitch(out.Segments)
	return out, nil
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func recoverEstimator(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s estimator panic: %v: %w", name, r, roof.ErrMeasurementExtractionFailed)
	}
}
