package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

const lookAtEpsilon = 1e-10

// LookAt builds a world-to-camera transform for a camera at eye looking at
// target. The rotation rows are [right; up; -forward] and the transform is
// R·Translate(-eye).
func LookAt(eye, target, up r3.Vector) Transform {
	forward := target.Sub(eye)
	if forward.Norm() < lookAtEpsilon {
		forward = r3.Vector{X: 0, Y: 0, Z: -1}
	} else {
		forward = forward.Normalize()
	}

	right := forward.Cross(up)
	if right.Norm() < lookAtEpsilon {
		// up is collinear with forward
		alt := r3.Vector{X: 0, Y: 1, Z: 0}
		if math.Abs(forward.Dot(alt)) >= 0.9 {
			alt = r3.Vector{X: 1, Y: 0, Z: 0}
		}
		right = forward.Cross(alt)
	}
	right = right.Normalize()
	trueUp := right.Cross(forward)

	back := forward.Mul(-1)
	r := Rotation{
		right.X, right.Y, right.Z,
		trueUp.X, trueUp.Y, trueUp.Z,
		back.X, back.Y, back.Z,
	}
	return ComposeTransform(r, r.Apply(eye).Mul(-1))
}

// Forward returns the viewing direction encoded by a look-at rotation.
func Forward(r Rotation) r3.Vector {
	return r.Row(2).Mul(-1)
}
