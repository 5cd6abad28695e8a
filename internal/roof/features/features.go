// Package features finds small structures on a roof (chimneys, vents,
// skylights) by classifying the mesh's disconnected pieces by shape.
package features

import (
	"github.com/banshee-data/roof.report/internal/roof/mesh"
	"github.com/banshee-data/roof.report/internal/units"
)

// Category names a kind of roof feature.
type Category string

const (
	Chimney  Category = "chimney"
	Vent     Category = "vent"
	Skylight Category = "skylight"
	Other    Category = "other"
)

// DefaultBodyFraction is the share of total mesh area above which a
// component is treated as roof body.
const DefaultBodyFraction = 0.1

// Thresholds are shape limits in feet.
type Thresholds struct {
	ChimneyMinHeight     float64
	ChimneyMaxFootprint  float64
	VentMaxFootprint     float64
	VentMaxHeight        float64
	SkylightMinFootprint float64
	SkylightMaxHeight    float64
}

// DefaultThresholds returns the stock limits: chimneys taller than 1 m on
// a footprint under 1 m, vents under 0.5 m across and 0.3 m high,
// skylights over 0.5 m across and under 0.3 m high.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChimneyMinHeight:     3.28,
		ChimneyMaxFootprint:  3.28,
		VentMaxFootprint:     1.64,
		VentMaxHeight:        0.98,
		SkylightMinFootprint: 1.64,
		SkylightMaxHeight:    0.98,
	}
}

// Classify assigns a category from bounding-box extents in feet. Rules are
// checked in order chimney, vent, skylight.
func (th Thresholds) Classify(width, length, height float64) Category {
	switch {
	case height > th.ChimneyMinHeight && width < th.ChimneyMaxFootprint && length < th.ChimneyMaxFootprint:
		return Chimney
	case width < th.VentMaxFootprint && length < th.VentMaxFootprint && height < th.VentMaxHeight:
		return Vent
	case width > th.SkylightMinFootprint && length > th.SkylightMinFootprint && height < th.SkylightMaxHeight:
		return Skylight
	default:
		return Other
	}
}

// Feature is one classified component.
type Feature struct {
	Category Category
	Width    float64 // Δx, ft
	Length   float64 // Δy, ft
	Height   float64 // Δz, ft
	Area     float64 // ft²
	Faces    int
}

// Result holds per-category counts. Total counts every feature including
// Other.
type Result struct {
	Chimneys  int
	Vents     int
	Skylights int
	Other     int
	Total     int
	Features  []Feature
}

// Detector classifies mesh components.
type Detector struct {
	Thresholds   Thresholds
	BodyFraction float64
	LengthFactor float64 // mesh units → ft
	AreaFactor   float64 // mesh units² → ft²
}

// NewDetector returns a Detector with default thresholds for a mesh in
// metres.
func NewDetector() *Detector {
	return &Detector{
		Thresholds:   DefaultThresholds(),
		BodyFraction: DefaultBodyFraction,
		LengthFactor: units.MetresToFeet,
		AreaFactor:   units.SquareMetresToSquareFeet,
	}
}

// Detect splits m into edge-connected components, skips every component
// larger than BodyFraction of the total area and classifies the rest.
func (d *Detector) Detect(m *mesh.Mesh) Result {
	var res Result
	total := m.TotalArea()
	if total == 0 {
		return res
	}

	for _, comp := range m.Components() {
		area := m.FacesArea(comp)
		if area > total*d.BodyFraction {
			continue
		}
		min, max := m.FacesBounds(comp)
		ext := max.Sub(min).Mul(d.LengthFactor)
		f := Feature{
			Category: d.Thresholds.Classify(ext.X, ext.Y, ext.Z),
			Width:    ext.X,
			Length:   ext.Y,
			Height:   ext.Z,
			Area:     area * d.AreaFactor,
			Faces:    len(comp),
		}
		res.Features = append(res.Features, f)
		switch f.Category {
		case Chimney:
			res.Chimneys++
		case Vent:
			res.Vents++
		case Skylight:
			res.Skylights++
		default:
			res.Other++
		}
	}
	res.Total = len(res.Features)
	return res
}
