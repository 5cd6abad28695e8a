// Package report assembles measurements, segments and features into the
// MeasurementReport returned to clients.
package report

import (
	"math"

	"github.com/banshee-data/roof.report/internal/roof/features"
	"github.com/banshee-data/roof.report/internal/roof/measure"
	"github.com/banshee-data/roof.report/internal/roof/pitch"
	"github.com/banshee-data/roof.report/internal/units"
)

// Confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

var errorMargins = map[string]string{
	ConfidenceHigh:   "±5%",
	ConfidenceMedium: "±10%",
	ConfidenceLow:    "±20%",
}

// MeasurementReport is the sole persisted output of a job.
type MeasurementReport struct {
	Area       Area       `json:"area"`
	Pitch      Pitch      `json:"pitch"`
	Dimensions Dimensions `json:"dimensions"`
	Segments   []Segment  `json:"segments,omitempty"`
	Features   Features   `json:"features"`
	Accuracy   Accuracy   `json:"accuracy"`
	ModelInfo  *ModelInfo `json:"model_info,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type Area struct {
	Total float64 `json:"total"`
	Unit  string  `json:"unit"`
}

// PitchValue is one pitch in notation and degrees.
type PitchValue struct {
	Pitch   string  `json:"pitch"`
	Degrees float64 `json:"degrees"`
}

// Pitch carries the histogram estimate as primary, the next most common
// bins in All, and the largest segment's pitch in Clustered.
type Pitch struct {
	Primary   string       `json:"primary"`
	Degrees   float64      `json:"degrees"`
	All       []PitchValue `json:"all,omitempty"`
	Clustered *PitchValue  `json:"clustered,omitempty"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Unit   string  `json:"unit"`
}

type Segment struct {
	ID      int     `json:"id"`
	Area    float64 `json:"area"`
	Pitch   string  `json:"pitch"`
	Degrees float64 `json:"degrees"`
}

type Features struct {
	Chimneys  int `json:"chimneys"`
	Vents     int `json:"vents"`
	Skylights int `json:"skylights"`
	Other     int `json:"other"`
	Total     int `json:"total"`
}

type Accuracy struct {
	Confidence  string `json:"confidence"`
	Estimated   bool   `json:"estimated"`
	ErrorMargin string `json:"error_margin,omitempty"`
}

type ModelInfo struct {
	Vertices int `json:"vertices"`
	Faces    int `json:"faces"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func pitchValue(p pitch.Pitch) PitchValue {
	return PitchValue{Pitch: p.Notation, Degrees: round(p.Degrees, 1)}
}

// Confidence grades a report. Synthetic camera poses are always low;
// recovered poses are high when at least one planar segment was found.
func Confidence(synthetic bool, segments int) (confidence string, estimated bool) {
	switch {
	case synthetic:
		return ConfidenceLow, true
	case segments > 0:
		return ConfidenceHigh, false
	default:
		return ConfidenceMedium, false
	}
}

// Assemble merges measurement and feature results into a report. Areas
// and lengths are rounded to two decimals, angles to one.
func Assemble(m *measure.Measurements, f features.Result, synthetic bool) *MeasurementReport {
	conf, estimated := Confidence(synthetic, len(m.Segments))

	r := &MeasurementReport{
		Area: Area{Total: round(m.Area, 2), Unit: units.SqFt},
		Pitch: Pitch{
			Primary: m.Histogram.Primary.Notation,
			Degrees: round(m.Histogram.Primary.Degrees, 1),
		},
		Dimensions: Dimensions{
			Length: round(m.Dimensions.Length, 2),
			Width:  round(m.Dimensions.Width, 2),
			Height: round(m.Dimensions.Height, 2),
			Unit:   units.Feet,
		},
		Features: Features{
			Chimneys:  f.Chimneys,
			Vents:     f.Vents,
			Skylights: f.Skylights,
			Other:     f.Other,
			Total:     f.Total,
		},
		Accuracy: Accuracy{
			Confidence:  conf,
			Estimated:   estimated,
			ErrorMargin: errorMargins[conf],
		},
		ModelInfo: &ModelInfo{Vertices: m.Vertices, Faces: m.Faces},
	}

	for _, p := range m.Histogram.All {
		r.Pitch.All = append(r.Pitch.All, pitchValue(p))
	}
	if m.Clustered.Known {
		c := pitchValue(m.Clustered)
		r.Pitch.Clustered = &c
	}
	for _, s := range m.Segments {
		r.Segments = append(r.Segments, Segment{
			ID:      s.ID,
			Area:    round(s.Area, 2),
			Pitch:   s.Pitch.Notation,
			Degrees: round(s.Pitch.Degrees, 1),
		})
	}
	return r
}

// Placeholder is the fixed-shape report returned when no measurement could
// be extracted. cause is recorded in Error.
func Placeholder(cause error) *MeasurementReport {
	r := &MeasurementReport{
		Area:       Area{Total: 2000, Unit: units.SqFt},
		Pitch:      Pitch{Primary: pitch.Notation(6), Degrees: 26.6},
		Dimensions: Dimensions{Length: 60, Width: 40, Height: 15, Unit: units.Feet},
		Accuracy: Accuracy{
			Confidence:  ConfidenceLow,
			Estimated:   true,
			ErrorMargin: errorMargins[ConfidenceLow],
		},
	}
	if cause != nil {
		r.Error = cause.Error()
	}
	return r
}
