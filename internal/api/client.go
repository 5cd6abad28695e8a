package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/roof.report/internal/httputil"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/roof/report"
)

// Client talks to a roof.report server.
type Client struct {
	BaseURL      string
	HTTP         httputil.HTTPClient
	PollInterval time.Duration
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: 5 * time.Minute},
		PollInterval: 2 * time.Second,
	}
}

// Submit uploads the image files at paths as a new job.
func (c *Client) Submit(ctx context.Context, paths []string) (SubmitResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return SubmitResponse{}, err
		}
		part, err := mw.CreateFormFile(ImagesField, filepath.Base(p))
		if err != nil {
			return SubmitResponse{}, err
		}
		if _, err := part.Write(data); err != nil {
			return SubmitResponse{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return SubmitResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/jobs", &body)
	if err != nil {
		return SubmitResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp SubmitResponse
	err = c.do(req, http.StatusAccepted, &resp)
	return resp, err
}

// Job returns the job's current status record.
func (c *Client) Job(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	err := c.get(ctx, "/api/jobs/"+id, &job)
	return job, err
}

// Report returns the report of a completed job.
func (c *Client) Report(ctx context.Context, id string) (*report.MeasurementReport, error) {
	var rep report.MeasurementReport
	if err := c.get(ctx, "/api/jobs/"+id+"/report", &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Wait polls the job until it is complete or failed, calling progress with
// every snapshot when non-nil.
func (c *Client) Wait(ctx context.Context, id string, progress func(jobs.Job)) (jobs.Job, error) {
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return jobs.Job{}, err
		}
		if progress != nil {
			progress(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

// StatusError is a non-success response from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		var body httputil.ErrorBody
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
