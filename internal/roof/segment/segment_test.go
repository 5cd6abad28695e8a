package segment_test

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roof.report/internal/roof/segment"
	"github.com/banshee-data/roof.report/internal/testutil"
)

func TestSegment_TwoPlanes(t *testing.T) {
	m := testutil.TwoPlaneRoofMesh(t)
	segs := segment.NewSegmenter().Segment(m)
	require.Len(t, segs, 2)

	assert.InDelta(t, 100.0, segs[0].Area, 1e-6)
	assert.InDelta(t, 50.0, segs[1].Area, 1e-6)
	assert.InDelta(t, 0.0, segs[0].Pitch.Degrees, 1e-6)
	assert.InDelta(t, 30.0, segs[1].Pitch.Degrees, 1e-6)
	assert.Equal(t, "7:12", segs[1].Pitch.Notation)

	assert.Len(t, segs[0].Faces, 32)
	assert.Len(t, segs[1].Faces, 32)
	assert.InDelta(t, 1.0, segs[1].Normal.Norm(), 1e-12)

	total := m.TotalArea() * 10.764
	assert.LessOrEqual(t, segment.TotalArea(segs), total+1e-9)

	p, ok := segment.PrimaryPitch(segs)
	assert.True(t, ok)
	assert.Equal(t, segs[0].Pitch, p)
}

func TestSegment_SmallGroupsAreNoise(t *testing.T) {
	// a lone tilted triangle cannot reach MinPts
	m := testutil.TiltedTriangleMesh(t, 30)
	segs := segment.NewSegmenter().Segment(m)
	assert.Empty(t, segs)

	p, ok := segment.PrimaryPitch(segs)
	assert.False(t, ok)
	assert.False(t, p.Known)
}

func TestSegment_CubeSides(t *testing.T) {
	// each cube side has only two faces, below MinPts
	m := testutil.CubeMesh(t, 2)
	assert.Empty(t, segment.NewSegmenter().Segment(m))

	s := segment.NewSegmenter()
	s.Params.MinPts = 2
	segs := s.Segment(m)
	require.Len(t, segs, 6)
	for _, seg := range segs {
		assert.InDelta(t, 4*10.764, seg.Area, 1e-9)
	}
}

func TestDBSCAN_Labels(t *testing.T) {
	var pts []r3.Vector
	for i := 0; i < 6; i++ {
		pts = append(pts, r3.Vector{X: 0.01 * float64(i), Z: 1})
	}
	for i := 0; i < 6; i++ {
		pts = append(pts, r3.Vector{X: 1, Y: 0.01 * float64(i)})
	}
	pts = append(pts, r3.Vector{X: -1})

	labels, n := segment.DBSCAN(pts, nil, segment.DefaultParams())
	assert.Equal(t, 2, n)
	for i := 0; i < 6; i++ {
		assert.Equal(t, 1, labels[i])
		assert.Equal(t, 2, labels[i+6])
	}
	assert.Equal(t, segment.Noise, labels[12])
}

func TestDBSCAN_SkipAndEmpty(t *testing.T) {
	labels, n := segment.DBSCAN(nil, nil, segment.DefaultParams())
	assert.Empty(t, labels)
	assert.Zero(t, n)

	pts := make([]r3.Vector, 5)
	skip := []bool{true, false, false, false, false}
	labels, n = segment.DBSCAN(pts, skip, segment.DefaultParams())
	assert.Zero(t, n, "four points cannot reach MinPts=5 once one is skipped")
	for _, l := range labels {
		assert.Equal(t, segment.Noise, l)
	}
}

func TestSpatialIndex_NegativeCoordinates(t *testing.T) {
	pts := []r3.Vector{{X: -0.05, Y: -0.05, Z: -0.05}, {X: 0.02, Y: 0.02, Z: 0.02}, {X: 0.5}}
	si := segment.NewSpatialIndex(0.1)
	si.Build(pts, nil)
	got := si.RegionQuery(pts, 0, 0.15)
	assert.ElementsMatch(t, []int{0, 1}, got)
}
