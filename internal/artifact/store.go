// Package artifact stores per-job output files (report, pose document,
// charts) keyed by job ID and file name.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/banshee-data/roof.report/internal/fsutil"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists job artifacts.
type Store interface {
	Put(ctx context.Context, jobID, name string, content []byte) error
	Get(ctx context.Context, jobID, name string) ([]byte, error)
}

// objectKey joins jobID and name into "jobID/name", rejecting empty parts
// and names that would climb out of the job prefix.
func objectKey(jobID, name string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if jobID == "" {
		return "", fmt.Errorf("job id is required")
	}
	if name == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	if strings.Contains(jobID, "/") || strings.Contains(jobID, "..") {
		return "", fmt.Errorf("invalid job id %q", jobID)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return jobID + "/" + clean, nil
}

// LocalStore keeps artifacts under Root/<jobID>/<name>.
type LocalStore struct {
	FS   fsutil.FileSystem
	Root string
}

func NewLocalStore(fsys fsutil.FileSystem, root string) *LocalStore {
	return &LocalStore{FS: fsys, Root: root}
}

func (s *LocalStore) Put(ctx context.Context, jobID, name string, content []byte) error {
	key, err := objectKey(jobID, name)
	if err != nil {
		return err
	}
	p := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := s.FS.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return s.FS.WriteFileAtomic(p, content, 0o644)
}

func (s *LocalStore) Get(ctx context.Context, jobID, name string) ([]byte, error) {
	key, err := objectKey(jobID, name)
	if err != nil {
		return nil, err
	}
	data, err := s.FS.ReadFile(filepath.Join(s.Root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// MemoryStore keeps artifacts in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, jobID, name string, content []byte) error {
	key, err := objectKey(jobID, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID, name string) ([]byte, error) {
	key, err := objectKey(jobID, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
