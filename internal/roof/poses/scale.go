package poses

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scale heuristics for an unscaled reconstruction of a residential roof.
const (
	targetLongestDimension = 15.0
	minCameraDistance      = 5.0
	maxCameraDistance      = 100.0
	farCameraTarget        = 20.0
)

// EstimateScale guesses a metric scale for a reconstruction. The point
// cloud's longest bounding-box side is scaled to 15 units, then the factor
// is nudged when the mean camera distance from the camera centroid is
// implausibly small (≤5) or large (≥100).
func EstimateScale(points []r3.Vector, poses []CameraPose) float64 {
	scale := 1.0
	if len(points) > 0 {
		xs := make([]float64, len(points))
		ys := make([]float64, len(points))
		zs := make([]float64, len(points))
		for i, p := range points {
			xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
		}
		longest := math.Max(floats.Max(xs)-floats.Min(xs),
			math.Max(floats.Max(ys)-floats.Min(ys), floats.Max(zs)-floats.Min(zs)))
		if longest > 0 {
			scale = targetLongestDimension / longest
		}
	}

	if len(poses) < 2 {
		return scale
	}
	centers := make([]r3.Vector, len(poses))
	var sum r3.Vector
	for i, p := range poses {
		centers[i] = p.Center()
		sum = sum.Add(centers[i])
	}
	centroid := sum.Mul(1 / float64(len(poses)))
	dists := make([]float64, len(centers))
	for i, c := range centers {
		dists[i] = c.Sub(centroid).Norm()
	}
	avg := stat.Mean(dists, nil)

	switch {
	case avg <= minCameraDistance:
		scale *= minCameraDistance / math.Max(0.1, avg)
	case avg >= maxCameraDistance:
		scale *= farCameraTarget / avg
	}
	return scale
}
