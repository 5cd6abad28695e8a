// Package geometry converts camera poses between the reconstruction's axis
// convention and the renderer's.
//
// Transforms are 4x4 homogeneous matrices stored row-major:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33]
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 1e-6

// Transform is a row-major 4x4 homogeneous transform.
type Transform [16]float64

// Rotation is a row-major 3x3 rotation matrix.
type Rotation [9]float64

// Identity is the 4x4 identity transform.
var Identity = Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// IdentityRotation is the 3x3 identity rotation.
var IdentityRotation = Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}

// axisFlip maps the reconstruction convention (Y up, Z forward) to the
// renderer convention (Y up, -Z forward, right-handed).
var axisFlip = Transform{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, -1, 0,
	0, 0, 0, 1,
}

// ComposeTransform embeds r and t into a homogeneous transform.
func ComposeTransform(r Rotation, t r3.Vector) Transform {
	return Transform{
		r[0], r[1], r[2], t.X,
		r[3], r[4], r[5], t.Y,
		r[6], r[7], r[8], t.Z,
		0, 0, 0, 1,
	}
}

// FlipAxes right-multiplies t by diag(1,-1,-1,1). Applying it twice
// returns the original transform.
func FlipAxes(t Transform) Transform {
	return t.Mul(axisFlip)
}

// Mul returns a·b.
func (a Transform) Mul(b Transform) Transform {
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[i*4+k] * b[k*4+j]
			}
			out[i*4+j] = sum
		}
	}
	return out
}

// Rotation extracts the upper-left 3x3 block.
func (t Transform) Rotation() Rotation {
	return Rotation{t[0], t[1], t[2], t[4], t[5], t[6], t[8], t[9], t[10]}
}

// Translation extracts the last column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// Matrix returns t as nested rows, the layout used by pose documents.
func (t Transform) Matrix() [4][4]float64 {
	var m [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = t[i*4+j]
		}
	}
	return m
}

// ApproxEqual reports whether every element of a and b differs by at most tol.
func (a Transform) ApproxEqual(b Transform, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// Row returns row i of r as a vector.
func (r Rotation) Row(i int) r3.Vector {
	return r3.Vector{X: r[i*3], Y: r[i*3+1], Z: r[i*3+2]}
}

// Apply returns r·v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// Transpose returns rᵗ, which is also r⁻¹ for a proper rotation.
func (r Rotation) Transpose() Rotation {
	return Rotation{r[0], r[3], r[6], r[1], r[4], r[7], r[2], r[5], r[8]}
}

// Dense returns r as a gonum matrix.
func (r Rotation) Dense() *mat.Dense {
	return mat.NewDense(3, 3, r[:])
}

// OrthonormalityError returns ‖R·Rᵗ − I‖ (Frobenius) and det(R).
func OrthonormalityError(r Rotation) (residual, det float64) {
	m := r.Dense()
	var rrt mat.Dense
	rrt.Mul(m, m.T())
	var diff mat.Dense
	diff.Sub(&rrt, mat.NewDiagDense(3, []float64{1, 1, 1}))
	return mat.Norm(&diff, 2), mat.Det(m)
}

// IsOrthonormal reports whether r is a proper rotation within tol.
func IsOrthonormal(r Rotation, tol float64) bool {
	residual, det := OrthonormalityError(r)
	return residual < tol && math.Abs(det-1.0) < tol
}

// IsValidTransformMatrix checks if a 4x4 matrix is a valid rigid transform.
// A valid rigid transform has:
// 1. Orthonormal rotation submatrix (det ≈ 1)
// 2. Last row is [0 0 0 1]
func IsValidTransformMatrix(t Transform) bool {
	if !IsOrthonormal(t.Rotation(), 1e-3) {
		return false
	}
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1.0) > 0.001 {
		return false
	}
	return true
}

// CameraCenter returns the world position of a camera whose world-to-camera
// extrinsics are (r, t): -Rᵗ·t.
func CameraCenter(r Rotation, t r3.Vector) r3.Vector {
	return r.Transpose().Apply(t).Mul(-1)
}
