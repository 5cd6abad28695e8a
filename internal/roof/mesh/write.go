package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteOBJ encodes m as Wavefront OBJ with 1-based face indices.
func (m *Mesh) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %s %s %s\n", f(v.X), f(v.Y), f(v.Z))
	}
	for _, face := range m.Faces {
		fmt.Fprintf(bw, "f %d %d %d\n", face[0]+1, face[1]+1, face[2]+1)
	}
	return bw.Flush()
}

// SaveOBJ writes m to path.
func (m *Mesh) SaveOBJ(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mesh file: %w", err)
	}
	if err := m.WriteOBJ(out); err != nil {
		out.Close()
		return fmt.Errorf("write mesh file: %w", err)
	}
	return out.Close()
}
