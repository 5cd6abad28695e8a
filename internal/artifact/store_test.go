package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roof.report/internal/fsutil"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		jobID, name string
		want        string
		wantErr     bool
	}{
		{"job-1", "report.json", "job-1/report.json", false},
		{"job-1", "/charts/pitch.png", "job-1/charts/pitch.png", false},
		{" job-1 ", "a/../report.json", "job-1/report.json", false},
		{"", "report.json", "", true},
		{"job-1", "  ", "", true},
		{"job-1", "../other/report.json", "", true},
		{"../etc", "passwd", "", true},
		{"a/b", "x", "", true},
	}
	for _, tt := range tests {
		got, err := objectKey(tt.jobID, tt.name)
		if tt.wantErr {
			assert.Error(t, err, "objectKey(%q, %q)", tt.jobID, tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	fs := fsutil.NewMemoryFileSystem()
	s := NewLocalStore(fs, "/workspace")

	require.NoError(t, s.Put(ctx, "job-1", "report.json", []byte(`{}`)))
	assert.True(t, fs.Exists("/workspace/job-1/report.json"))

	data, err := s.Get(ctx, "job-1", "report.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	_, err = s.Get(ctx, "job-1", "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	fs.FailWrites(errors.New("disk full"))
	assert.Error(t, s.Put(ctx, "job-1", "report.json", []byte(`{}`)))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	content := []byte("png")
	require.NoError(t, s.Put(ctx, "job-1", "pitch_histogram.png", content))
	content[0] = 'X'

	data, err := s.Get(ctx, "job-1", "pitch_histogram.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "job-2", "pitch_histogram.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Put(ctx, "", "x", nil))
}

func TestNewS3Store_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"no endpoint", S3Config{AccessKey: "a", SecretKey: "b", Bucket: "c"}},
		{"no credentials", S3Config{Endpoint: "localhost:9000", Bucket: "c"}},
		{"no bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Store(tt.cfg)
			assert.Error(t, err)
		})
	}

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "roof-reports"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
	assert.Equal(t, "roof-reports", s.bucket)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("pitch_histogram.png"))
	assert.Equal(t, "model/obj", contentType("mesh.obj"))
	assert.Equal(t, "application/octet-stream", contentType("mesh.unknownext"))
}
