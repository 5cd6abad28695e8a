package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/timeutil"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
)

// Recorder persists job records. The registry calls it after every update,
// in update order, outside the read lock.
type Recorder interface {
	SaveJob(ctx context.Context, j Job) error
}

// Registry owns every job record. Readers get copies and never block each
// other; updates are applied one at a time.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string

	saveMu   sync.Mutex
	recorder Recorder
	clock    timeutil.Clock
}

// NewRegistry returns an empty registry. recorder may be nil.
func NewRegistry(clock timeutil.Clock, recorder Recorder) *Registry {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Registry{
		jobs:     make(map[string]*Job),
		recorder: recorder,
		clock:    clock,
	}
}

// Create registers a queued job.
func (r *Registry) Create(id string, imageCount int) (Job, error) {
	now := r.clock.Now()
	j := &Job{
		ID:         id,
		Status:     StatusQueued,
		Message:    "Job queued",
		ImageCount: imageCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	if _, ok := r.jobs[id]; ok {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%s: %w", id, ErrJobExists)
	}
	r.jobs[id] = j
	r.order = append(r.order, id)
	snap := j.clone()
	r.saveMu.Lock()
	r.mu.Unlock()

	r.record(snap)
	return snap, nil
}

// Restore loads previously persisted records. Jobs that were still queued
// or processing when the previous process stopped are marked failed.
func (r *Registry) Restore(jobs []Job) {
	var interrupted []Job

	r.mu.Lock()
	for i := range jobs {
		j := jobs[i].clone()
		if _, ok := r.jobs[j.ID]; ok {
			continue
		}
		if !j.Status.Terminal() {
			j.Status = StatusError
			j.Error = "interrupted by server restart"
			j.Message = j.Error
			j.UpdatedAt = r.clock.Now()
			interrupted = append(interrupted, j.clone())
		}
		r.jobs[j.ID] = &j
		r.order = append(r.order, j.ID)
	}
	r.saveMu.Lock()
	r.mu.Unlock()

	for _, j := range interrupted {
		r.persist(j)
	}
	r.saveMu.Unlock()
	monitoring.Logf("[Registry] restored %d jobs (%d interrupted)", len(jobs), len(interrupted))
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// List returns snapshots of every job in creation order.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].clone())
	}
	return out
}

// Counts returns the number of jobs per status.
func (r *Registry) Counts() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, j := range r.jobs {
		counts[j.Status]++
	}
	return counts
}

// ErrJobActive is returned when removing a job that is still running.
var ErrJobActive = errors.New("job is still active")

// Remove deletes a finished job from the registry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if !j.Status.Terminal() {
		return fmt.Errorf("%s: %w", id, ErrJobActive)
	}
	delete(r.jobs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// FinishedBefore returns the IDs of terminal jobs created before cutoff.
func (r *Registry) FinishedBefore(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, id := range r.order {
		j := r.jobs[id]
		if j.Status.Terminal() && j.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// update applies fn to the job under the write lock and persists the
// result. Terminal jobs are not modified.
func (r *Registry) update(id string, fn func(j *Job)) (Job, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if j.Status.Terminal() {
		snap := j.clone()
		r.mu.Unlock()
		return snap, fmt.Errorf("job %s already %s", id, j.Status)
	}
	fn(j)
	j.UpdatedAt = r.clock.Now()
	snap := j.clone()
	r.saveMu.Lock()
	r.mu.Unlock()

	r.record(snap)
	return snap, nil
}

// record persists snap and releases saveMu, which the caller acquired
// before dropping the write lock so records are saved in update order.
func (r *Registry) record(snap Job) {
	defer r.saveMu.Unlock()
	r.persist(snap)
}

func (r *Registry) persist(snap Job) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.SaveJob(context.Background(), snap); err != nil {
		monitoring.Logf("[Registry] failed to persist job %s: %v", snap.ID, err)
	}
}

// Advance moves a job to stage and marks it processing.
func (r *Registry) Advance(id string, stage Stage, message string) (Job, error) {
	return r.update(id, func(j *Job) {
		j.Status = StatusProcessing
		j.Stage = stage
		j.Progress = stageProgress[stage]
		j.Message = message
	})
}

// Warn appends a warning to the job.
func (r *Registry) Warn(id, warning string) (Job, error) {
	return r.update(id, func(j *Job) {
		j.Warnings = append(j.Warnings, warning)
	})
}

// Complete stores the job's report and marks it complete.
func (r *Registry) Complete(id string, rep *report.MeasurementReport) (Job, error) {
	return r.update(id, func(j *Job) {
		j.Status = StatusComplete
		j.Progress = 100
		j.Message = "Report ready"
		j.Report = rep
	})
}

// Fail marks the job failed with cause.
func (r *Registry) Fail(id string, cause error) (Job, error) {
	return r.update(id, func(j *Job) {
		j.Status = StatusError
		j.Error = cause.Error()
		j.Message = failureMessage(cause)
	})
}

func failureMessage(err error) string {
	var insufficient *roof.InsufficientImagesError
	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("Need at least %d valid images, got %d", insufficient.Min, insufficient.Count)
	case errors.Is(err, roof.ErrPoseWriteFailed):
		return "Could not write camera poses"
	default:
		return "Processing failed"
	}
}
