// Package segment splits a roof mesh into planar sections by clustering
// face normals with DBSCAN.
package segment

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roof.report/internal/roof/mesh"
	"github.com/banshee-data/roof.report/internal/roof/pitch"
	"github.com/banshee-data/roof.report/internal/units"
)

// Segment is one planar section of the roof.
type Segment struct {
	ID     int         // 0-based cluster id, in discovery order
	Faces  []int       // member face indices, ascending
	Area   float64     // square feet
	Normal r3.Vector   // renormalised mean of member normals
	Pitch  pitch.Pitch // slope of Normal
}

// Segmenter clusters faces into planar segments.
type Segmenter struct {
	Params     Params
	AreaFactor float64 // mesh units² → ft²
	Up         r3.Vector
}

// NewSegmenter returns a Segmenter with default clustering parameters.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		Params:     DefaultParams(),
		AreaFactor: units.SquareMetresToSquareFeet,
		Up:         pitch.Up,
	}
}

// Segment clusters the faces of m by normal and returns one Segment per
// cluster, largest area first. Noise faces and degenerate faces are not
// part of any segment.
func (s *Segmenter) Segment(m *mesh.Mesh) []Segment {
	n := m.NumFaces()
	normals := make([]r3.Vector, n)
	skip := make([]bool, n)
	for i := 0; i < n; i++ {
		normals[i] = m.Normal(i)
		skip[i] = m.Area(i) == 0
	}

	labels, count := DBSCAN(normals, skip, s.Params)
	if count == 0 {
		return nil
	}

	members := make([][]int, count)
	for i, l := range labels {
		if l > 0 {
			members[l-1] = append(members[l-1], i)
		}
	}

	up := s.Up
	if up.Norm() == 0 {
		up = pitch.Up
	}

	segments := make([]Segment, 0, count)
	for id, faces := range members {
		if len(faces) == 0 {
			continue
		}
		var sum r3.Vector
		for _, f := range faces {
			sum = sum.Add(normals[f])
		}
		normal := sum
		if sum.Norm() > 0 {
			normal = sum.Normalize()
		}
		segments = append(segments, Segment{
			ID:     id,
			Faces:  faces,
			Area:   m.FacesArea(faces) * s.AreaFactor,
			Normal: normal,
			Pitch:  pitch.FromDegrees(pitch.AngleFromNormal(normal, up)),
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Area > segments[j].Area
	})
	return segments
}

// PrimaryPitch is the pitch of the largest segment, an estimator that is
// independent of the face-angle histogram. ok is false with no segments.
func PrimaryPitch(segments []Segment) (p pitch.Pitch, ok bool) {
	if len(segments) == 0 {
		return pitch.Unknown, false
	}
	return segments[0].Pitch, true
}

// TotalArea sums segment areas in square feet.
func TotalArea(segments []Segment) float64 {
	var sum float64
	for _, s := range segments {
		sum += s.Area
	}
	return sum
}
