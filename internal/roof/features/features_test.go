package features_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roof.report/internal/roof/features"
	"github.com/banshee-data/roof.report/internal/testutil"
)

func TestDetect_RoofWithFeatures(t *testing.T) {
	res := features.NewDetector().Detect(testutil.RoofWithFeaturesMesh(t))

	assert.Equal(t, 1, res.Chimneys)
	assert.Equal(t, 1, res.Vents)
	assert.Equal(t, 1, res.Skylights)
	assert.Equal(t, 0, res.Other)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Features, 3)

	chimney := res.Features[0]
	assert.Equal(t, features.Chimney, chimney.Category)
	assert.InDelta(t, 0.6*3.28084, chimney.Width, 1e-9)
	assert.InDelta(t, 1.5*3.28084, chimney.Height, 1e-9)
	assert.Equal(t, 12, chimney.Faces)
}

func TestDetect_BodyNeverAFeature(t *testing.T) {
	// a lone roof is all body
	b := testutil.NewMeshBuilder()
	b.AddGrid(r3.Vector{}, r3.Vector{X: 0.3}, r3.Vector{Y: 0.3}, 2, 2)
	res := features.NewDetector().Detect(b.Build(t))
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Features)

	// every feature must be at most 10% of total area
	m := testutil.RoofWithFeaturesMesh(t)
	total := m.TotalArea() * 10.764
	for _, f := range features.NewDetector().Detect(m).Features {
		assert.LessOrEqual(t, f.Area, total*0.1)
	}
}

func TestDetect_BodyFractionConfigurable(t *testing.T) {
	d := features.NewDetector()
	d.BodyFraction = 1.0
	res := d.Detect(testutil.RoofWithFeaturesMesh(t))
	// the roof itself now counts as a flat, wide component
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Skylights)
}

func TestClassify(t *testing.T) {
	th := features.DefaultThresholds()
	tests := []struct {
		name                  string
		width, length, height float64
		want                  features.Category
	}{
		{"tall narrow", 2, 2, 5, features.Chimney},
		{"small", 1, 1, 0.5, features.Vent},
		{"flat wide", 4, 3, 0.3, features.Skylight},
		{"wide and tall", 5, 5, 5, features.Other},
		{"narrow strip", 0.5, 6, 0.2, features.Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(tt.width, tt.length, tt.height))
		})
	}
}
