// Package roof holds the domain errors shared by the roof measurement
// packages (geometry, poses, mesh, measure, segment, features, report).
//
// Failure policy: ErrInsufficientImages and ErrPoseWriteFailed fail a job.
// ErrReconstructionFailed is absorbed by the synthetic camera rig and
// ErrMeasurementExtractionFailed by the placeholder report.
package roof

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientImages is returned when fewer than MinImages valid images are present.
	ErrInsufficientImages = errors.New("insufficient images")
	// ErrReconstructionFailed is returned when external pose recovery produced nothing usable.
	ErrReconstructionFailed = errors.New("reconstruction failed")
	// ErrPoseWriteFailed is returned when the pose document cannot be persisted.
	ErrPoseWriteFailed = errors.New("pose write failed")
	// ErrMeasurementExtractionFailed is returned when the mesh is unreadable or degenerate.
	ErrMeasurementExtractionFailed = errors.New("measurement extraction failed")
)

// MinImages is the minimum number of valid images a job needs.
const MinImages = 3

// InsufficientImagesError reports how many images were found.
type InsufficientImagesError struct {
	Count int
	Min   int
}

func (e *InsufficientImagesError) Error() string {
	return fmt.Sprintf("not enough images: %d (minimum %d required)", e.Count, e.Min)
}

// Is lets errors.Is match ErrInsufficientImages.
func (e *InsufficientImagesError) Is(target error) bool {
	return target == ErrInsufficientImages
}
