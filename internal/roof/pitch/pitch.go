// Package pitch converts roof slope angles to the rise-per-12 notation used
// by roofers.
package pitch

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Run is the horizontal run every rise is expressed against.
const Run = 12

// Up is the vertical axis of the mesh coordinate frame.
var Up = r3.Vector{X: 0, Y: 0, Z: 1}

// Pitch is a slope in both angular and rise:run form.
type Pitch struct {
	Rise     int
	Degrees  float64
	Notation string
	Known    bool
}

// Unknown is reported when there is no upward-facing geometry to measure.
var Unknown = Pitch{Rise: 0, Degrees: 0, Notation: "0:12", Known: false}

// FromDegrees builds a Pitch from a slope angle in degrees.
// The rise is round(tan(angle)·12).
func FromDegrees(deg float64) Pitch {
	if math.IsNaN(deg) || deg < 0 {
		return Unknown
	}
	if deg >= 90 {
		deg = 89.9
	}
	rise := int(math.Round(math.Tan(deg*math.Pi/180) * Run))
	return Pitch{
		Rise:     rise,
		Degrees:  deg,
		Notation: Notation(rise),
		Known:    true,
	}
}

// Notation formats a rise as "rise:12".
func Notation(rise int) string {
	return fmt.Sprintf("%d:%d", rise, Run)
}

// AngleFromNormal returns arccos(|n·up|) in degrees, the slope of a plane
// with normal n. n need not be unit length. A zero normal returns NaN.
func AngleFromNormal(n, up r3.Vector) float64 {
	norm := n.Norm()
	if norm == 0 {
		return math.NaN()
	}
	c := math.Abs(n.Dot(up.Normalize())) / norm
	if c > 1 {
		c = 1
	}
	return math.Acos(c) * 180 / math.Pi
}

// UpwardFacing reports whether n has a positive component along up.
func UpwardFacing(n, up r3.Vector) bool {
	return n.Dot(up) > 0
}
