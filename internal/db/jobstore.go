package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/roof/report"
)

// ErrReportNotFound is returned by LoadReport when a job has no stored report.
var ErrReportNotFound = errors.New("report not found")

// JobStore records job snapshots and their reports. It satisfies
// jobs.Recorder so the registry can persist every transition.
type JobStore struct {
	db *DB
}

// NewJobStore returns a store over db.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

var _ jobs.Recorder = (*JobStore)(nil)

// SaveJob upserts the job row and, when the job carries a report, the
// report row. Both writes share one transaction.
func (s *JobStore) SaveJob(ctx context.Context, job jobs.Job) error {
	warnings := job.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO roof_jobs (
			job_id, status, stage, message, progress, image_count,
			warnings_json, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			message = excluded.message,
			progress = excluded.progress,
			image_count = excluded.image_count,
			warnings_json = excluded.warnings_json,
			error = excluded.error,
			updated_at = excluded.updated_at
	`,
		job.ID, string(job.Status), string(job.Stage), job.Message, job.Progress, job.ImageCount,
		string(warningsJSON), job.Error, formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	if job.Report != nil {
		if err := saveReport(ctx, tx, job.ID, job.Report, job.UpdatedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job %s: %w", job.ID, err)
	}
	return nil
}

func saveReport(ctx context.Context, tx *sql.Tx, jobID string, rep *report.MeasurementReport, at time.Time) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report for job %s: %w", jobID, err)
	}

	estimated := 0
	if rep.Accuracy.Estimated {
		estimated = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO roof_reports (job_id, report_json, total_sqft, squares, confidence, is_estimated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			report_json = excluded.report_json,
			total_sqft = excluded.total_sqft,
			squares = excluded.squares,
			confidence = excluded.confidence,
			is_estimated = excluded.is_estimated
	`, jobID, string(body), rep.Area.Total, rep.Area.Total/100, rep.Accuracy.Confidence, estimated, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to save report for job %s: %w", jobID, err)
	}
	return nil
}

// ListJobs returns every stored job, oldest first, without reports.
func (s *JobStore) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, status, stage, message, progress, image_count,
		       warnings_json, error, created_at, updated_at
		FROM roof_jobs
		ORDER BY created_at, job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		var (
			job                  jobs.Job
			status, stage        string
			warningsJSON         string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&job.ID, &status, &stage, &job.Message, &job.Progress, &job.ImageCount,
			&warningsJSON, &job.Error, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Status = jobs.Status(status)
		job.Stage = jobs.Stage(stage)
		if err := json.Unmarshal([]byte(warningsJSON), &job.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings for job %s: %w", job.ID, err)
		}
		if len(job.Warnings) == 0 {
			job.Warnings = nil
		}
		if job.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return out, nil
}

// LoadReport returns the stored report for jobID or ErrReportNotFound.
func (s *JobStore) LoadReport(ctx context.Context, jobID string) (*report.MeasurementReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM roof_reports WHERE job_id = ?`, jobID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report for job %s: %w", jobID, err)
	}

	var rep report.MeasurementReport
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report for job %s: %w", jobID, err)
	}
	return &rep, nil
}

// DeleteJob removes the job and its report. Deleting an unknown job is not
// an error.
func (s *JobStore) DeleteJob(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roof_jobs WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

// ReportSummary is one row of the completed-report index.
type ReportSummary struct {
	JobID       string    `json:"job_id"`
	TotalSqFt   float64   `json:"total_sqft"`
	Squares     float64   `json:"squares"`
	Confidence  string    `json:"confidence"`
	IsEstimated bool      `json:"is_estimated"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListReports returns a summary of every stored report, newest first.
func (s *JobStore) ListReports(ctx context.Context) ([]ReportSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, total_sqft, squares, confidence, is_estimated, created_at
		FROM roof_reports
		ORDER BY created_at DESC, job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var (
			r         ReportSummary
			estimated int
			createdAt string
		)
		if err := rows.Scan(&r.JobID, &r.TotalSqFt, &r.Squares, &r.Confidence, &estimated, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.IsEstimated = estimated != 0
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("report %s: %w", r.JobID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
