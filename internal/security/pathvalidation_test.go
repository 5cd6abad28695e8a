package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	workspace := filepath.Join(tmp, "workspace")
	outside := filepath.Join(tmp, "outside")
	for _, d := range []string{workspace, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(workspace, "escape")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"job dir", filepath.Join(workspace, "job-1"), false},
		{"nested new file", filepath.Join(workspace, "job-1", "images", "a.jpg"), false},
		{"directory itself", workspace, false},
		{"dot dot", filepath.Join(workspace, "..", "outside", "x"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"sibling with shared prefix", workspace + "-evil/x", true},
		{"through symlink", filepath.Join(workspace, "escape", "secret"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, workspace)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	if err := ValidatePathWithinDirectory("/tmp/x", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestSafeJoin(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "roof_01.jpg", "roof_01.jpg"},
		{"traversal stripped", "../../etc/passwd", "passwd"},
		{"spaces", "my roof photo.png", "my_roof_photo.png"},
		{"windows style", `C:\photos\a.jpg`, "C_photos_a.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(dir, tt.in)
			if err != nil {
				t.Fatalf("SafeJoin: %v", err)
			}
			if got != filepath.Join(dir, tt.want) {
				t.Errorf("SafeJoin(%q) = %q, want %q", tt.in, got, filepath.Join(dir, tt.want))
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"...", "unknown"},
		{"IMG_0001.JPG", "IMG_0001.JPG"},
		{"héllo wörld.jpg", "h_llo_w_rld.jpg"},
		{"a!!!b", "a_b"},
		{"._hidden.png", "hidden.png"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_TruncateKeepsExtension(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".tiff")
	if len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
	if !strings.HasSuffix(got, ".tiff") {
		t.Errorf("extension lost: %q", got[len(got)-10:])
	}
}
