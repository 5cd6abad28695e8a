// Package poses produces the camera pose set a job's reconstruction is
// trained from. Poses come from an external structure-from-motion backend
// when it succeeds and from a synthetic circular rig when it does not.
package poses

import (
	"github.com/golang/geo/r3"

	"github.com/banshee-data/roof.report/internal/roof/geometry"
)

// Provenance records where a pose set came from.
type Provenance string

const (
	Recovered Provenance = "recovered"
	Synthetic Provenance = "synthetic"
)

// DefaultFOV is the horizontal field of view, in radians (about 49°), used
// when no pinhole-family camera is available.
const DefaultFOV = 0.8575560450553894

// CameraPose is one image's world-to-camera extrinsics.
type CameraPose struct {
	ID          int
	Rotation    geometry.Rotation
	Translation r3.Vector
	ImageName   string
	CameraID    int
}

// Transform embeds the pose in a homogeneous matrix.
func (p CameraPose) Transform() geometry.Transform {
	return geometry.ComposeTransform(p.Rotation, p.Translation)
}

// Center is the camera position in world coordinates.
func (p CameraPose) Center() r3.Vector {
	return geometry.CameraCenter(p.Rotation, p.Translation)
}

// PoseSet is the ordered output of recovery or the synthetic rig.
type PoseSet struct {
	Poses       []CameraPose
	FOV         float64 // horizontal, radians
	Provenance  Provenance
	Cameras     []Camera
	NumPoints   int
	ScaleFactor float64
}

// Camera returns the intrinsics record with the given id.
func (ps *PoseSet) Camera(id int) (Camera, bool) {
	for _, c := range ps.Cameras {
		if c.ID == id {
			return c, true
		}
	}
	return Camera{}, false
}
