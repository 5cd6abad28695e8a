package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/roof.report/internal/artifact"
	"github.com/banshee-data/roof.report/internal/charts"
	"github.com/banshee-data/roof.report/internal/httputil"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof/poses"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/security"
	"github.com/banshee-data/roof.report/internal/version"
)

// ImagesField is the multipart field that carries uploaded photos.
const ImagesField = "images"

const defaultCleanupDays = 7

// downloadable lists the per-job files served by the artifacts route.
var downloadable = map[string]string{
	jobs.ReportFileName:      "application/json",
	poses.PoseDocumentName:   "application/json",
	charts.HistogramFileName: "image/png",
	jobs.MeshFileName:        "model/obj",
}

// SubmitResponse is returned by POST /api/jobs.
type SubmitResponse struct {
	JobID      string `json:"job_id"`
	ImageCount int    `json:"image_count"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Jobs    map[jobs.Status]int `json:"jobs"`
}

// CleanupResponse is returned by POST /api/cleanup.
type CleanupResponse struct {
	Cleaned []string `json:"cleaned"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, StatusResponse{
		Status:  "ok",
		Version: version.Version,
		Jobs:    s.Registry.Counts(),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.Registry.List())
	case http.MethodPost:
		s.createJob(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// createJob stores the uploaded photos under the job's images directory and
// starts the pipeline. Files without an image extension are skipped.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[ImagesField]
	if len(files) == 0 {
		httputil.BadRequest(w, "No images uploaded")
		return
	}

	id := s.NewID()
	saved, err := s.saveImages(id, files)
	if err != nil {
		s.discardJobDir(id)
		monitoring.Logf("[API] job %s: saving upload failed: %v", id, err)
		httputil.InternalServerError(w, "Failed to save uploaded images")
		return
	}
	if saved < s.MinImages {
		s.discardJobDir(id)
		httputil.BadRequest(w, fmt.Sprintf("Not enough valid images: %d saved, at least %d required", saved, s.MinImages))
		return
	}

	if _, err := s.Registry.Create(id, saved); err != nil {
		s.discardJobDir(id)
		httputil.InternalServerError(w, err.Error())
		return
	}
	s.Pipeline.Submit(r.Context(), id)
	monitoring.Logf("[API] job %s queued with %d images", id, saved)

	httputil.Accepted(w, SubmitResponse{JobID: id, ImageCount: saved})
}

func (s *Server) saveImages(id string, files []*multipart.FileHeader) (int, error) {
	dir := s.Pipeline.ImagesDir(id)
	if err := s.Pipeline.FS.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	saved := 0
	for i, fh := range files {
		if !poses.HasImageExtension(fh.Filename) {
			continue
		}
		// The index prefix keeps duplicate upload names apart.
		dst, err := security.SafeJoin(dir, fmt.Sprintf("%03d_%s", i, fh.Filename))
		if err != nil {
			return saved, err
		}
		if err := s.saveFile(fh, dst); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func (s *Server) saveFile(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := s.Pipeline.FS.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Server) discardJobDir(id string) {
	if err := s.Pipeline.FS.RemoveAll(s.Pipeline.JobDir(id)); err != nil {
		monitoring.Logf("[API] job %s: cleanup failed: %v", id, err)
	}
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (jobs.Job, bool) {
	id := r.PathValue("id")
	job, ok := s.Registry.Get(id)
	if !ok {
		httputil.NotFound(w, "Job not found")
		return jobs.Job{}, false
	}
	return job, true
}

func (s *Server) showJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, job)
}

// completedReport writes the 404 for unknown or unfinished jobs itself.
func (s *Server) completedReport(w http.ResponseWriter, r *http.Request) (string, *report.MeasurementReport, bool) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return "", nil, false
	}
	if job.Status != jobs.StatusComplete {
		httputil.NotFound(w, fmt.Sprintf("Job is not complete: %s", job.Status))
		return "", nil, false
	}
	rep, err := s.report(r.Context(), job)
	if err != nil {
		monitoring.Logf("[API] job %s: loading report failed: %v", job.ID, err)
		httputil.InternalServerError(w, "Report unavailable")
		return "", nil, false
	}
	return job.ID, rep, true
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if _, rep, ok := s.completedReport(w, r); ok {
		httputil.WriteJSONOK(w, rep)
	}
}

func (s *Server) showCharts(w http.ResponseWriter, r *http.Request) {
	id, rep, ok := s.completedReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := charts.ReportPage(w, id, rep); err != nil {
		monitoring.Logf("[API] job %s: rendering charts failed: %v", id, err)
	}
}

func (s *Server) showArtifact(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	contentType, allowed := downloadable[name]
	if !allowed {
		httputil.NotFound(w, "Unknown artifact")
		return
	}

	data, err := s.Artifacts.Get(r.Context(), job.ID, name)
	if errors.Is(err, artifact.ErrNotFound) {
		httputil.NotFound(w, "Artifact not available")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s", job.ID, name))
	w.Write(data)
}

func (s *Server) reportFromArtifacts(ctx context.Context, id string) (*report.MeasurementReport, error) {
	data, err := s.Artifacts.Get(ctx, id, jobs.ReportFileName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", jobs.ReportFileName, err)
	}
	var rep report.MeasurementReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode %s: %w", jobs.ReportFileName, err)
	}
	return &rep, nil
}

// cleanupJobs removes finished jobs older than ?days= (default 7) from the
// registry, the store and the workspace.
func (s *Server) cleanupJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.AdminKey != "" && r.URL.Query().Get("key") != s.AdminKey {
		httputil.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	days := defaultCleanupDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "days must be a non-negative integer")
			return
		}
		days = n
	}
	cutoff := s.Clock.Now().Add(-time.Duration(days) * 24 * time.Hour)

	cleaned := []string{}
	for _, id := range s.Registry.FinishedBefore(cutoff) {
		if err := s.removeJob(r.Context(), id); err != nil {
			monitoring.Logf("[API] cleanup of job %s failed: %v", id, err)
			continue
		}
		cleaned = append(cleaned, id)
	}
	monitoring.Logf("[API] cleaned up %d jobs older than %d days", len(cleaned), days)
	httputil.WriteJSONOK(w, CleanupResponse{Cleaned: cleaned})
}

func (s *Server) removeJob(ctx context.Context, id string) error {
	if s.Store != nil {
		if err := s.Store.DeleteJob(ctx, id); err != nil {
			return err
		}
	}
	if err := s.Registry.Remove(id); err != nil {
		return err
	}
	s.reports.Remove(id)
	return s.Pipeline.FS.RemoveAll(s.Pipeline.JobDir(id))
}
