package poses

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roof.report/internal/roof/geometry"
)

// Default rig layout, in reconstruction units.
const (
	DefaultRigRadius          = 4.0
	DefaultRigBaseHeight      = 2.0
	DefaultRigHeightAmplitude = 0.5
)

// SyntheticRig places one camera per image on a horizontal circle around
// the origin, every camera looking at the origin with +Z up. Heights vary
// as BaseHeight + HeightAmplitude·sin(2θ) for vertical parallax.
type SyntheticRig struct {
	Radius          float64
	BaseHeight      float64
	HeightAmplitude float64
	FOV             float64
}

// DefaultRig returns the stock rig.
func DefaultRig() SyntheticRig {
	return SyntheticRig{
		Radius:          DefaultRigRadius,
		BaseHeight:      DefaultRigBaseHeight,
		HeightAmplitude: DefaultRigHeightAmplitude,
		FOV:             DefaultFOV,
	}
}

// Eye returns the position of camera i of n.
func (r SyntheticRig) Eye(i, n int) r3.Vector {
	theta := float64(i) * 2 * math.Pi / float64(n)
	return r3.Vector{
		X: r.Radius * math.Cos(theta),
		Y: r.Radius * math.Sin(theta),
		Z: r.BaseHeight + r.HeightAmplitude*math.Sin(2*theta),
	}
}

// Generate returns one synthetic pose per image, in order.
func (r SyntheticRig) Generate(images []string) *PoseSet {
	fov := r.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	ps := &PoseSet{
		FOV:         fov,
		Provenance:  Synthetic,
		ScaleFactor: 1,
		Poses:       make([]CameraPose, len(images)),
	}
	up := r3.Vector{X: 0, Y: 0, Z: 1}
	for i, name := range images {
		t := geometry.LookAt(r.Eye(i, len(images)), r3.Vector{}, up)
		ps.Poses[i] = CameraPose{
			ID:          i + 1,
			Rotation:    t.Rotation(),
			Translation: t.Translation(),
			ImageName:   name,
		}
	}
	return ps
}
