// Package jobs runs the photo-to-report pipeline and keeps the status of
// every job in a concurrency-safe registry.
package jobs

import (
	"time"

	"github.com/banshee-data/roof.report/internal/roof/report"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Stage is the pipeline step a processing job is in.
type Stage string

const (
	StageDiscoverImages  Stage = "discover_images"
	StageRecoverPoses    Stage = "recover_poses"
	StageWritePoses      Stage = "write_poses"
	StageReconstructMesh Stage = "reconstruct_mesh"
	StageMeasure         Stage = "measure"
	StageAssembleReport  Stage = "assemble_report"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{
	StageDiscoverImages,
	StageRecoverPoses,
	StageWritePoses,
	StageReconstructMesh,
	StageMeasure,
	StageAssembleReport,
}

var stageProgress = map[Stage]int{
	StageDiscoverImages:  5,
	StageRecoverPoses:    20,
	StageWritePoses:      40,
	StageReconstructMesh: 55,
	StageMeasure:         75,
	StageAssembleReport:  90,
}

// Job is a snapshot of one job's status record. Snapshots returned by the
// Registry are copies; mutating them does not affect the registry.
type Job struct {
	ID         string                    `json:"id"`
	Status     Status                    `json:"status"`
	Stage      Stage                     `json:"stage,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Progress   int                       `json:"progress"`
	ImageCount int                       `json:"image_count"`
	Warnings   []string                  `json:"warnings,omitempty"`
	Report     *report.MeasurementReport `json:"report,omitempty"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// clone copies j. Reports are immutable once assembled and are shared.
func (j *Job) clone() Job {
	c := *j
	if j.Warnings != nil {
		c.Warnings = append([]string(nil), j.Warnings...)
	}
	return c
}
