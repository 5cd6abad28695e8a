package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_WriteFileAtomic(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	if err := fsys.WriteFileAtomic(path, []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := fsys.WriteFileAtomic(path, []byte(`{"v":2}`), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("got %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestOSFileSystem_WriteFileAtomic_MissingDir(t *testing.T) {
	err := OSFileSystem{}.WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "x"), []byte("x"), 0o644)
	if err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestOSFileSystem_Basics(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "jobs", "abc")
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := fsys.Create(filepath.Join(dir, "img.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "jpeg")
	w.Close()

	if !fsys.Exists(filepath.Join(dir, "img.jpg")) {
		t.Error("created file should exist")
	}
	info, err := fsys.Stat(filepath.Join(dir, "img.jpg"))
	if err != nil || info.Size() != 4 {
		t.Errorf("Stat = %v, %v", info, err)
	}
	if err := fsys.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if fsys.Exists(dir) {
		t.Error("directory should be gone")
	}
}

func TestMemoryFileSystem_RoundTrip(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("/jobs/abc/images", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteFile("/jobs/abc/poses/../transforms.json", []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := m.ReadFile("/jobs/abc/transforms.json")
	if err != nil || string(data) != "{}" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}

	// returned data is a copy
	data[0] = 'X'
	again, _ := m.ReadFile("/jobs/abc/transforms.json")
	if string(again) != "{}" {
		t.Error("caller mutation leaked into the filesystem")
	}

	for _, p := range []string{"/jobs", "/jobs/abc", "/jobs/abc/images"} {
		info, err := m.Stat(p)
		if err != nil || !info.IsDir() {
			t.Errorf("Stat(%s) = %v, %v; want directory", p, info, err)
		}
	}
}

func TestMemoryFileSystem_Create(t *testing.T) {
	m := NewMemoryFileSystem()
	w, err := m.Create("/up/a.png")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "abc")
	io.WriteString(w, "def")
	if m.Exists("/up/a.png") {
		t.Error("file should not be visible before Close")
	}
	w.Close()
	data, _ := m.ReadFile("/up/a.png")
	if string(data) != "abcdef" {
		t.Errorf("got %q", data)
	}
}

func TestMemoryFileSystem_FailWrites(t *testing.T) {
	m := NewMemoryFileSystem()
	diskFull := errors.New("disk full")
	m.FailWrites(diskFull)

	if err := m.WriteFile("/a", []byte("x"), 0o644); !errors.Is(err, diskFull) {
		t.Errorf("WriteFile error = %v, want disk full", err)
	}
	if err := m.WriteFileAtomic("/a", []byte("x"), 0o644); !errors.Is(err, diskFull) {
		t.Errorf("WriteFileAtomic error = %v, want disk full", err)
	}
	if _, err := m.Create("/a"); !errors.Is(err, diskFull) {
		t.Errorf("Create error = %v, want disk full", err)
	}

	m.FailWrites(nil)
	if err := m.WriteFile("/a", []byte("x"), 0o644); err != nil {
		t.Errorf("writes should succeed again: %v", err)
	}
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile("/jobs/a/report.json", []byte("1"), 0o644)
	m.WriteFile("/jobs/a/images/1.jpg", []byte("2"), 0o644)
	m.WriteFile("/jobs/ab/report.json", []byte("3"), 0o644)
	m.MkdirAll("/jobs/a/images", 0o755)

	if err := m.RemoveAll("/jobs/a"); err != nil {
		t.Fatal(err)
	}
	files := m.Files()
	if len(files) != 1 || files[0] != "/jobs/ab/report.json" {
		t.Errorf("remaining files = %v", files)
	}
	if m.Exists("/jobs/a/images") {
		t.Error("nested directory should be removed")
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	m := NewMemoryFileSystem()
	if _, err := m.ReadFile("/nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile error = %v", err)
	}
	if _, err := m.Stat("/nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat error = %v", err)
	}
	if m.Exists("/nope") {
		t.Error("missing file reported as existing")
	}
}
