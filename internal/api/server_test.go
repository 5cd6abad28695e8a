package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/httputil"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof/mesh"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/testutil"
	"github.com/banshee-data/roof.report/internal/timeutil"
	"github.com/banshee-data/roof.report/internal/units"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

var epoch = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// roofReconstructor writes a two-plane roof mesh for every job.
type roofReconstructor struct {
	m *mesh.Mesh
}

func (r roofReconstructor) Reconstruct(ctx context.Context, poseDocPath, workDir string) (string, error) {
	path := filepath.Join(workDir, "mesh.obj")
	return path, r.m.SaveOBJ(path)
}

type fakeStore struct {
	mu      sync.Mutex
	reports map[string]*report.MeasurementReport
	loads   int
	deleted []string
}

func (s *fakeStore) LoadReport(ctx context.Context, jobID string) (*report.MeasurementReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	rep, ok := s.reports[jobID]
	if !ok {
		return nil, fmt.Errorf("no report for %s", jobID)
	}
	return rep, nil
}

func (s *fakeStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, jobID)
	return nil
}

type fixture struct {
	server   *Server
	registry *jobs.Registry
	pipeline *jobs.Pipeline
	store    *fakeStore
	clock    *timeutil.MockClock
	mux      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	reg := jobs.NewRegistry(clock, nil)
	pipeline := jobs.NewPipeline(reg, fsutil.OSFileSystem{}, t.TempDir(), 2)
	pipeline.Clock = clock
	pipeline.Reconstructor = roofReconstructor{m: testutil.TwoPlaneRoofMesh(t)}

	store := &fakeStore{reports: map[string]*report.MeasurementReport{}}
	srv := NewServer(reg, pipeline, store, 3)
	srv.Clock = clock
	var n atomic.Int32
	srv.NewID = func() string { return fmt.Sprintf("job-%d", n.Add(1)) }

	t.Cleanup(pipeline.Wait)
	return &fixture{server: srv, registry: reg, pipeline: pipeline, store: store, clock: clock, mux: srv.ServeMux()}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *fixture) submit(t *testing.T, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(testutil.NewUploadRequest(t, "/api/jobs", ImagesField, files))
}

func TestShowStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Create("queued", 3)
	require.NoError(t, err)

	w := f.get("/api/status")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var got StatusResponse
	testutil.DecodeJSON(t, w.Body, &got)
	assert.Equal(t, "ok", got.Status)
	assert.NotEmpty(t, got.Version)
	assert.Equal(t, 1, got.Jobs[jobs.StatusQueued])

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/status", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestSubmitJob_RunsToCompletion(t *testing.T) {
	f := newFixture(t)

	w := f.submit(t, testutil.ImageFiles(t, 4))
	testutil.AssertStatusCode(t, w.Code, http.StatusAccepted)
	var sub SubmitResponse
	testutil.DecodeJSON(t, w.Body, &sub)
	assert.Equal(t, SubmitResponse{JobID: "job-1", ImageCount: 4}, sub)

	f.pipeline.Wait()

	w = f.get("/api/jobs/job-1")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var job jobs.Job
	testutil.DecodeJSON(t, w.Body, &job)
	assert.Equal(t, jobs.StatusComplete, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 4, job.ImageCount)

	w = f.get("/api/jobs/job-1/report")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var rep report.MeasurementReport
	testutil.DecodeJSON(t, w.Body, &rep)
	assert.Greater(t, rep.Area.Total, 0.0)
	assert.Equal(t, units.SqFt, rep.Area.Unit)

	w = f.get("/api/jobs/job-1/charts")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "echarts")

	for name, contentType := range map[string]string{
		"report.json":         "application/json",
		"transforms.json":     "application/json",
		"pitch_histogram.png": "image/png",
		"mesh.obj":            "model/obj",
	} {
		w = f.get("/api/jobs/job-1/artifacts/" + name)
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		assert.Equal(t, contentType, w.Header().Get("Content-Type"), name)
		assert.NotZero(t, w.Body.Len(), name)
	}

	w = f.get("/api/jobs/job-1/artifacts/mesh.obj")
	assert.Contains(t, w.Body.String(), "\nf ")

	w = f.get("/api/jobs/job-1/artifacts/images")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	w = f.get("/api/jobs")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var list []jobs.Job
	testutil.DecodeJSON(t, w.Body, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "job-1", list[0].ID)
}

func TestSubmitJob_StoresSanitizedImages(t *testing.T) {
	f := newFixture(t)
	files := testutil.ImageFiles(t, 3)
	files["../../escape.png"] = testutil.PNG(t, 9)

	w := f.submit(t, files)
	testutil.AssertStatusCode(t, w.Code, http.StatusAccepted)
	f.pipeline.Wait()

	entries, err := os.ReadDir(f.pipeline.ImagesDir("job-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "/")
	}
	_, err = os.Stat(filepath.Join(f.pipeline.Workspace, "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitJob_Rejections(t *testing.T) {
	f := newFixture(t)

	w := f.submit(t, map[string][]byte{})
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	var body httputil.ErrorBody
	testutil.DecodeJSON(t, w.Body, &body)
	assert.Equal(t, "No images uploaded", body.Error)

	w = f.submit(t, map[string][]byte{
		"a.png":   testutil.PNG(t, 1),
		"b.txt":   []byte("not an image"),
		"c.pdf":   []byte("%PDF"),
		"d.jpeg":  testutil.PNG(t, 2),
		"e.notes": []byte("x"),
	})
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	testutil.DecodeJSON(t, w.Body, &body)
	assert.Equal(t, "Not enough valid images: 2 saved, at least 3 required", body.Error)

	_, err := os.Stat(f.pipeline.JobDir("job-1"))
	assert.True(t, os.IsNotExist(err), "rejected upload must not leave files behind")
	assert.Empty(t, f.registry.List())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	testutil.AssertStatusCode(t, f.do(req).Code, http.StatusBadRequest)

	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodPut, "/api/jobs", nil)).Code, http.StatusMethodNotAllowed)
}

func TestSubmitJob_TooLarge(t *testing.T) {
	f := newFixture(t)
	f.server.MaxUploadBytes = 64

	w := f.submit(t, testutil.ImageFiles(t, 3))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	assert.Empty(t, f.registry.List())
}

func TestJobRoutes_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/api/jobs/missing",
		"/api/jobs/missing/report",
		"/api/jobs/missing/charts",
		"/api/jobs/missing/artifacts/report.json",
	} {
		testutil.AssertStatusCode(t, f.get(path).Code, http.StatusNotFound)
	}
}

func TestShowReport_NotCompleteIs404(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Create("pending", 3)
	require.NoError(t, err)

	w := f.get("/api/jobs/pending/report")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	var body httputil.ErrorBody
	testutil.DecodeJSON(t, w.Body, &body)
	assert.Equal(t, "Job is not complete: queued", body.Error)

	testutil.AssertStatusCode(t, f.get("/api/jobs/pending/charts").Code, http.StatusNotFound)
}

func TestShowReport_RestoredJobUsesStoreThenCache(t *testing.T) {
	f := newFixture(t)
	f.registry.Restore([]jobs.Job{{ID: "old", Status: jobs.StatusComplete, Progress: 100, CreatedAt: epoch, UpdatedAt: epoch}})
	f.store.reports["old"] = report.Placeholder(nil)

	for range 3 {
		w := f.get("/api/jobs/old/report")
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		var rep report.MeasurementReport
		testutil.DecodeJSON(t, w.Body, &rep)
		assert.Equal(t, 2000.0, rep.Area.Total)
	}
	assert.Equal(t, 1, f.store.loads)
}

func TestShowReport_FallsBackToReportFile(t *testing.T) {
	f := newFixture(t)
	f.server.Store = nil
	f.registry.Restore([]jobs.Job{{ID: "old", Status: jobs.StatusComplete, CreatedAt: epoch, UpdatedAt: epoch}})

	data, err := json.Marshal(report.Placeholder(nil))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(f.pipeline.JobDir("old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.pipeline.JobDir("old"), jobs.ReportFileName), data, 0o644))

	testutil.AssertStatusCode(t, f.get("/api/jobs/old/report").Code, http.StatusOK)

	f.registry.Restore([]jobs.Job{{ID: "lost", Status: jobs.StatusComplete, CreatedAt: epoch, UpdatedAt: epoch}})
	testutil.AssertStatusCode(t, f.get("/api/jobs/lost/report").Code, http.StatusInternalServerError)
}

func TestCleanupJobs(t *testing.T) {
	f := newFixture(t)
	f.server.AdminKey = "secret"

	w := f.submit(t, testutil.ImageFiles(t, 3))
	testutil.AssertStatusCode(t, w.Code, http.StatusAccepted)
	f.pipeline.Wait()
	_, err := f.registry.Create("running", 3)
	require.NoError(t, err)

	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodPost, "/api/cleanup", nil)).Code, http.StatusUnauthorized)
	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodGet, "/api/cleanup?key=secret", nil)).Code, http.StatusMethodNotAllowed)
	testutil.AssertStatusCode(t, f.do(httptest.NewRequest(http.MethodPost, "/api/cleanup?key=secret&days=x", nil)).Code, http.StatusBadRequest)

	// Nothing is older than a week yet.
	w = f.do(httptest.NewRequest(http.MethodPost, "/api/cleanup?key=secret", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var resp CleanupResponse
	testutil.DecodeJSON(t, w.Body, &resp)
	assert.Empty(t, resp.Cleaned)

	f.clock.Advance(8 * 24 * time.Hour)
	w = f.do(httptest.NewRequest(http.MethodPost, "/api/cleanup?key=secret", nil))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	testutil.DecodeJSON(t, w.Body, &resp)
	assert.Equal(t, []string{"job-1"}, resp.Cleaned)
	assert.Equal(t, []string{"job-1"}, f.store.deleted)

	testutil.AssertStatusCode(t, f.get("/api/jobs/job-1").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, f.get("/api/jobs/running").Code, http.StatusOK)
	_, err = os.Stat(f.pipeline.JobDir("job-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoggingMiddleware(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status?x=1", nil))

	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "GET")
	assert.Contains(t, lines[0], "/api/status?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "101", statusCodeColor(101))
}
