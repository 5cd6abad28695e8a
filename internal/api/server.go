// Package api exposes roof measurement jobs over HTTP and provides a client
// for the same routes.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/banshee-data/roof.report/internal/artifact"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	defaultMaxUploadBytes = 100 << 20
	reportCacheSize       = 256
)

// ReportStore is the persistent side of the server: stored reports for jobs
// restored after a restart, and removal of cleaned-up jobs.
type ReportStore interface {
	LoadReport(ctx context.Context, jobID string) (*report.MeasurementReport, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Server serves the job routes. Registry and Pipeline are required; the
// remaining fields have usable zero values after NewServer.
type Server struct {
	Registry  *jobs.Registry
	Pipeline  *jobs.Pipeline
	Store     ReportStore    // optional
	Artifacts artifact.Store // read side for /artifacts
	Clock     timeutil.Clock

	MinImages      int
	MaxUploadBytes int64
	// AdminKey guards /api/cleanup when set.
	AdminKey string
	NewID    func() string

	reports *lru.Cache[string, *report.MeasurementReport]
}

// NewServer returns a server whose artifacts are read from the pipeline's
// workspace.
func NewServer(reg *jobs.Registry, pipeline *jobs.Pipeline, store ReportStore, minImages int) *Server {
	cache, err := lru.New[string, *report.MeasurementReport](reportCacheSize)
	if err != nil {
		panic(err)
	}
	return &Server{
		Registry:       reg,
		Pipeline:       pipeline,
		Store:          store,
		Artifacts:      artifact.NewLocalStore(pipeline.FS, pipeline.Workspace),
		Clock:          timeutil.RealClock{},
		MinImages:      minImages,
		MaxUploadBytes: defaultMaxUploadBytes,
		NewID:          uuid.NewString,
		reports:        cache,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/cleanup", s.cleanupJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.showJob)
	mux.HandleFunc("GET /api/jobs/{id}/report", s.showReport)
	mux.HandleFunc("GET /api/jobs/{id}/charts", s.showCharts)
	mux.HandleFunc("GET /api/jobs/{id}/artifacts/{name}", s.showArtifact)
	return mux
}

// report returns the job's report from the registry, the cache, the store,
// or the job's report.json, in that order.
func (s *Server) report(ctx context.Context, job jobs.Job) (*report.MeasurementReport, error) {
	if job.Report != nil {
		return job.Report, nil
	}
	if rep, ok := s.reports.Get(job.ID); ok {
		return rep, nil
	}

	var rep *report.MeasurementReport
	var err error
	if s.Store != nil {
		rep, err = s.Store.LoadReport(ctx, job.ID)
	}
	if rep == nil {
		var fileErr error
		rep, fileErr = s.reportFromArtifacts(ctx, job.ID)
		if fileErr != nil {
			return nil, multierr.Combine(err, fileErr)
		}
	}
	s.reports.Add(job.ID, rep)
	return rep, nil
}
