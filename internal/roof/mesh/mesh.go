// Package mesh holds the triangle mesh produced by the external
// reconstruction step along with its derived per-face normals and areas.
//
// A Mesh is read-only once built, so measurement, segmentation and feature
// detection may read it from separate goroutines.
package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

var (
	// ErrEmptyMesh is returned when a mesh has no faces.
	ErrEmptyMesh = errors.New("mesh has no faces")
	// ErrIndexOutOfRange is returned when a face references a missing vertex.
	ErrIndexOutOfRange = errors.New("face vertex index out of range")
	// ErrNonFiniteVertex is returned when a vertex coordinate is NaN or infinite.
	ErrNonFiniteVertex = errors.New("vertex coordinate is not finite")
)

// Face is a triangle given as three vertex indices.
type Face [3]int

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []r3.Vector
	Faces    []Face

	normals []r3.Vector
	areas   []float64
}

// New validates faces against vertices and derives normals and areas.
func New(vertices []r3.Vector, faces []Face) (*Mesh, error) {
	if len(faces) == 0 {
		return nil, ErrEmptyMesh
	}
	for i, v := range vertices {
		if !finite(v) {
			return nil, fmt.Errorf("vertex %d %v: %w", i, v, ErrNonFiniteVertex)
		}
	}
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("face %d index %d (have %d vertices): %w", i, idx, len(vertices), ErrIndexOutOfRange)
			}
		}
	}

	m := &Mesh{
		Vertices: vertices,
		Faces:    faces,
		normals:  make([]r3.Vector, len(faces)),
		areas:    make([]float64, len(faces)),
	}
	for i, f := range faces {
		a, b, c := vertices[f[0]], vertices[f[1]], vertices[f[2]]
		cross := b.Sub(a).Cross(c.Sub(a))
		n := cross.Norm()
		m.areas[i] = n / 2
		if n > 0 {
			m.normals[i] = cross.Mul(1 / n)
		}
	}
	return m, nil
}

func finite(v r3.Vector) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// NumFaces returns the number of triangles.
func (m *Mesh) NumFaces() int { return len(m.Faces) }

// Normal returns the unit normal of face i, or the zero vector for a
// degenerate face.
func (m *Mesh) Normal(i int) r3.Vector { return m.normals[i] }

// Area returns the area of face i in mesh units squared.
func (m *Mesh) Area(i int) float64 { return m.areas[i] }

// TotalArea is the sum of all face areas.
func (m *Mesh) TotalArea() float64 {
	var sum float64
	for _, a := range m.areas {
		sum += a
	}
	return sum
}

// FacesArea sums the areas of the given faces.
func (m *Mesh) FacesArea(faces []int) float64 {
	var sum float64
	for _, i := range faces {
		sum += m.areas[i]
	}
	return sum
}

// Bounds returns the axis-aligned bounding box of every vertex referenced
// by a face.
func (m *Mesh) Bounds() (min, max r3.Vector) {
	all := make([]int, len(m.Faces))
	for i := range all {
		all[i] = i
	}
	return m.FacesBounds(all)
}

// FacesBounds returns the axis-aligned bounding box of the given faces.
func (m *Mesh) FacesBounds(faces []int) (min, max r3.Vector) {
	if len(faces) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min = r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, fi := range faces {
		for _, vi := range m.Faces[fi] {
			v := m.Vertices[vi]
			min.X = math.Min(min.X, v.X)
			min.Y = math.Min(min.Y, v.Y)
			min.Z = math.Min(min.Z, v.Z)
			max.X = math.Max(max.X, v.X)
			max.Y = math.Max(max.Y, v.Y)
			max.Z = math.Max(max.Z, v.Z)
		}
	}
	return min, max
}

type edge struct{ a, b int }

func makeEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Components splits the mesh into edge-connected groups of faces. Faces
// that touch only at a vertex fall into different components. Components
// are ordered by their lowest face index and each lists faces ascending.
func (m *Mesh) Components() [][]int {
	parent := make([]int, len(m.Faces))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	firstFace := make(map[edge]int, len(m.Faces)*3/2)
	for i, f := range m.Faces {
		for k := 0; k < 3; k++ {
			e := makeEdge(f[k], f[(k+1)%3])
			if e.a == e.b {
				continue
			}
			if other, ok := firstFace[e]; ok {
				union(i, other)
			} else {
				firstFace[e] = i
			}
		}
	}

	groups := make(map[int][]int)
	for i := range m.Faces {
		r := find(i)
		groups[r] = append(groups[r], i)
	}
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
