package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roof.report/internal/roof/mesh"
)

// MeshBuilder accumulates triangles for mesh fixtures. Vertices with equal
// coordinates are shared so adjacent quads are edge-connected.
type MeshBuilder struct {
	vertices []r3.Vector
	faces    []mesh.Face
	index    map[r3.Vector]int
}

// NewMeshBuilder returns an empty builder.
func NewMeshBuilder() *MeshBuilder {
	return &MeshBuilder{index: make(map[r3.Vector]int)}
}

func (b *MeshBuilder) vertex(v r3.Vector) int {
	if i, ok := b.index[v]; ok {
		return i
	}
	i := len(b.vertices)
	b.vertices = append(b.vertices, v)
	b.index[v] = i
	return i
}

// AddTriangle appends one triangle; its normal follows the right-hand rule.
func (b *MeshBuilder) AddTriangle(p0, p1, p2 r3.Vector) *MeshBuilder {
	b.faces = append(b.faces, mesh.Face{b.vertex(p0), b.vertex(p1), b.vertex(p2)})
	return b
}

// AddQuad appends a quad wound counter-clockwise as seen from its front.
func (b *MeshBuilder) AddQuad(p0, p1, p2, p3 r3.Vector) *MeshBuilder {
	b.AddTriangle(p0, p1, p2)
	b.AddTriangle(p0, p2, p3)
	return b
}

// AddGrid appends the parallelogram origin + s·u + t·v (s,t in [0,1])
// split into nu×nv quads. Its normal points along u×v.
func (b *MeshBuilder) AddGrid(origin, u, v r3.Vector, nu, nv int) *MeshBuilder {
	at := func(i, j int) r3.Vector {
		return origin.Add(u.Mul(float64(i) / float64(nu))).Add(v.Mul(float64(j) / float64(nv)))
	}
	for i := 0; i < nu; i++ {
		for j := 0; j < nv; j++ {
			b.AddQuad(at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1))
		}
	}
	return b
}

// AddBox appends a closed axis-aligned box with outward normals.
func (b *MeshBuilder) AddBox(min, max r3.Vector) *MeshBuilder {
	x0, y0, z0 := min.X, min.Y, min.Z
	x1, y1, z1 := max.X, max.Y, max.Z
	p := func(x, y, z float64) r3.Vector { return r3.Vector{X: x, Y: y, Z: z} }

	b.AddQuad(p(x0, y0, z0), p(x0, y1, z0), p(x1, y1, z0), p(x1, y0, z0)) // bottom
	b.AddQuad(p(x0, y0, z1), p(x1, y0, z1), p(x1, y1, z1), p(x0, y1, z1)) // top
	b.AddQuad(p(x0, y0, z0), p(x1, y0, z0), p(x1, y0, z1), p(x0, y0, z1))
	b.AddQuad(p(x0, y1, z0), p(x0, y1, z1), p(x1, y1, z1), p(x1, y1, z0))
	b.AddQuad(p(x0, y0, z0), p(x0, y0, z1), p(x0, y1, z1), p(x0, y1, z0))
	b.AddQuad(p(x1, y0, z0), p(x1, y1, z0), p(x1, y1, z1), p(x1, y0, z1))
	return b
}

// Build validates the accumulated geometry.
func (b *MeshBuilder) Build(tb testing.TB) *mesh.Mesh {
	tb.Helper()
	m, err := mesh.New(b.vertices, b.faces)
	if err != nil {
		tb.Fatalf("build fixture mesh: %v", err)
	}
	return m
}

// CubeMesh is a closed cube with the given side length in metres.
func CubeMesh(tb testing.TB, side float64) *mesh.Mesh {
	tb.Helper()
	return NewMeshBuilder().AddBox(r3.Vector{}, r3.Vector{X: side, Y: side, Z: side}).Build(tb)
}

// TiltedTriangleMesh is a single upward-facing triangle sloped deg degrees
// about the Y axis.
func TiltedTriangleMesh(tb testing.TB, deg float64) *mesh.Mesh {
	tb.Helper()
	rad := deg * math.Pi / 180
	slope := r3.Vector{X: math.Cos(rad), Z: math.Sin(rad)}
	return NewMeshBuilder().
		AddTriangle(r3.Vector{}, slope, r3.Vector{Y: 1}).
		Build(tb)
}

// SqFtToSqM converts square feet to square metres with the default
// area factor.
func SqFtToSqM(sqft float64) float64 { return sqft / 10.764 }

// TwoPlaneRoofMesh is a flat 100 sq ft section next to a 50 sq ft section
// sloped at 30°, each split into 32 triangles.
func TwoPlaneRoofMesh(tb testing.TB) *mesh.Mesh {
	tb.Helper()
	flatSide := math.Sqrt(SqFtToSqM(100))
	tiltedLen := SqFtToSqM(50) / flatSide
	rad := 30 * math.Pi / 180

	return NewMeshBuilder().
		AddGrid(r3.Vector{}, r3.Vector{X: flatSide}, r3.Vector{Y: flatSide}, 4, 4).
		AddGrid(
			r3.Vector{X: flatSide + 1},
			r3.Vector{X: tiltedLen * math.Cos(rad), Z: tiltedLen * math.Sin(rad)},
			r3.Vector{Y: flatSide},
			4, 4,
		).
		Build(tb)
}

// RoofWithFeaturesMesh is a flat 10×10 m roof carrying one chimney, one
// vent and one skylight, each a separate closed box.
func RoofWithFeaturesMesh(tb testing.TB) *mesh.Mesh {
	tb.Helper()
	return NewMeshBuilder().
		AddGrid(r3.Vector{}, r3.Vector{X: 10}, r3.Vector{Y: 10}, 10, 10).
		AddBox(r3.Vector{X: 2.2, Y: 2.2, Z: 0.01}, r3.Vector{X: 2.8, Y: 2.8, Z: 1.51}).  // chimney
		AddBox(r3.Vector{X: 5.35, Y: 5.35, Z: 0.01}, r3.Vector{X: 5.65, Y: 5.65, Z: 0.2}). // vent
		AddBox(r3.Vector{X: 7.1, Y: 7.1, Z: 0.01}, r3.Vector{X: 8.1, Y: 7.9, Z: 0.06}).    // skylight
		Build(tb)
}

// WriteOBJFile saves m as an OBJ file under dir and returns its path.
func WriteOBJFile(tb testing.TB, dir, name string, m *mesh.Mesh) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := m.SaveOBJ(path); err != nil {
		tb.Fatalf("write fixture mesh: %v", err)
	}
	return path
}

// WriteSTLFile saves m as a binary STL file under dir and returns its path.
func WriteSTLFile(tb testing.TB, dir, name string, m *mesh.Mesh) string {
	tb.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(m.NumFaces()))
	for i, f := range m.Faces {
		n := m.Normal(i)
		rec := []float32{float32(n.X), float32(n.Y), float32(n.Z)}
		for _, idx := range f {
			v := m.Vertices[idx]
			rec = append(rec, float32(v.X), float32(v.Y), float32(v.Z))
		}
		binary.Write(&buf, binary.LittleEndian, rec)
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		tb.Fatalf("write fixture mesh: %v", err)
	}
	return path
}
