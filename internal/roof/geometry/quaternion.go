package geometry

import (
	"errors"

	"gonum.org/v1/gonum/num/quat"
)

// ErrZeroQuaternion is returned when a quaternion has no direction to normalise.
var ErrZeroQuaternion = errors.New("zero-norm quaternion")

// Quaternion is a rotation quaternion in (w, x, y, z) order, the order
// COLMAP writes in images.txt.
type Quaternion struct {
	W, X, Y, Z float64
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Norm returns |q|.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize scales q to unit norm.
func (q Quaternion) Normalize() (Quaternion, error) {
	n := q.Norm()
	if n < 1e-12 {
		return Quaternion{}, ErrZeroQuaternion
	}
	u := quat.Scale(1/n, q.number())
	return Quaternion{W: u.Real, X: u.Imag, Y: u.Jmag, Z: u.Kmag}, nil
}

// QuaternionToRotation converts q to a rotation matrix using the bilinear
// formula. q is normalised first so slightly denormalised input from text
// files still yields an orthonormal matrix.
func QuaternionToRotation(q Quaternion) (Rotation, error) {
	u, err := q.Normalize()
	if err != nil {
		return Rotation{}, err
	}
	w, x, y, z := u.W, u.X, u.Y, u.Z
	return Rotation{
		1 - 2*y*y - 2*z*z, 2*x*y - 2*z*w, 2*x*z + 2*y*w,
		2*x*y + 2*z*w, 1 - 2*x*x - 2*z*z, 2*y*z - 2*x*w,
		2*x*z - 2*y*w, 2*y*z + 2*x*w, 1 - 2*x*x - 2*y*y,
	}, nil
}
