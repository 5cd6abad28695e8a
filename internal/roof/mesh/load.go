package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/unixpickle/model3d/model3d"
)

// Load reads a mesh from path, choosing the decoder by file extension.
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".obj":
		return LoadOBJ(f)
	case ".stl":
		return LoadSTL(f)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", ext)
	}
}

// LoadOBJ parses Wavefront OBJ vertex and face records. Polygons are
// fan-triangulated; texture and normal indices in v/vt/vn references are
// ignored and negative indices count back from the latest vertex.
func LoadOBJ(r io.Reader) (*Mesh, error) {
	var (
		vertices []r3.Vector
		faces    []Face
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", lineNo)
			}
			var c [3]float64
			for k := 0; k < 3; k++ {
				val, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				c[k] = val
			}
			vertices = append(vertices, r3.Vector{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				i, err := parseOBJIndex(ref, len(vertices))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", lineNo, err)
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				faces = append(faces, Face{idx[0], idx[k], idx[k+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	return New(vertices, faces)
}

// parseOBJIndex converts a 1-based (or negative relative) OBJ vertex
// reference to a 0-based index.
func parseOBJIndex(ref string, numVertices int) (int, error) {
	if slash := strings.IndexByte(ref, '/'); slash >= 0 {
		ref = ref[:slash]
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q", ref)
	}
	switch {
	case i > 0:
		return i - 1, nil
	case i < 0:
		return numVertices + i, nil
	default:
		return 0, fmt.Errorf("face index 0: %w", ErrIndexOutOfRange)
	}
}

// LoadSTL reads a binary or ASCII STL. STL stores unshared triangle
// corners, so corners with identical coordinates are welded into one
// vertex to recover edge connectivity.
func LoadSTL(r io.Reader) (*Mesh, error) {
	tris, err := model3d.ReadSTL(r)
	if err != nil {
		return nil, fmt.Errorf("read stl: %w", err)
	}
	index := make(map[model3d.Coord3D]int, len(tris))
	var vertices []r3.Vector
	faces := make([]Face, 0, len(tris))
	for _, t := range tris {
		var f Face
		for k, c := range t {
			i, ok := index[c]
			if !ok {
				i = len(vertices)
				index[c] = i
				vertices = append(vertices, r3.Vector{X: c.X, Y: c.Y, Z: c.Z})
			}
			f[k] = i
		}
		faces = append(faces, f)
	}
	return New(vertices, faces)
}
