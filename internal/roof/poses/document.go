package poses

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/geometry"
)

// PoseDocumentName is the file name the reconstruction step expects.
const PoseDocumentName = "transforms.json"

// Frame is one image entry of a pose document.
type Frame struct {
	FilePath        string        `json:"file_path"`
	TransformMatrix [4][4]float64 `json:"transform_matrix"`
	CameraID        int           `json:"camera_id,omitempty"`
	FocalX          *float64      `json:"fl_x,omitempty"`
	FocalY          *float64      `json:"fl_y,omitempty"`
	CX              *float64      `json:"cx,omitempty"`
	CY              *float64      `json:"cy,omitempty"`
	Width           int           `json:"w,omitempty"`
	Height          int           `json:"h,omitempty"`
}

// DocumentMetadata describes how a pose document was produced.
type DocumentMetadata struct {
	Provenance  Provenance `json:"provenance"`
	Synthetic   bool       `json:"synthetic"`
	NumImages   int        `json:"num_images"`
	NumCameras  int        `json:"num_cameras"`
	NumPoints   int        `json:"num_points"`
	ScaleFactor float64    `json:"scale_factor"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PoseDocument is the transforms file consumed by the reconstruction
// step. CameraAngleX is the horizontal field of view in radians.
type PoseDocument struct {
	CameraAngleX float64          `json:"camera_angle_x"`
	Frames       []Frame          `json:"frames"`
	Metadata     DocumentMetadata `json:"metadata"`
}

// BuildDocument converts ps to a pose document. Recovered poses are flipped
// from the reconstruction axis convention to the renderer's; synthetic
// poses are already built in the renderer's frame and are written as is.
func BuildDocument(ps *PoseSet, createdAt time.Time) *PoseDocument {
	doc := &PoseDocument{
		CameraAngleX: ps.FOV,
		Frames:       make([]Frame, 0, len(ps.Poses)),
		Metadata: DocumentMetadata{
			Provenance:  ps.Provenance,
			Synthetic:   ps.Provenance == Synthetic,
			NumImages:   len(ps.Poses),
			NumCameras:  len(ps.Cameras),
			NumPoints:   ps.NumPoints,
			ScaleFactor: ps.ScaleFactor,
			CreatedAt:   createdAt.UTC(),
		},
	}
	for _, p := range ps.Poses {
		t := p.Transform()
		if ps.Provenance == Recovered {
			t = geometry.FlipAxes(t)
		}
		f := Frame{
			FilePath:        p.ImageName,
			TransformMatrix: t.Matrix(),
			CameraID:        p.CameraID,
		}
		if cam, ok := ps.Camera(p.CameraID); ok {
			if in, ok := cam.Intrinsics(); ok {
				f.FocalX, f.FocalY = &in.FocalX, &in.FocalY
				f.CX, f.CY = &in.CX, &in.CY
			}
			f.Width, f.Height = cam.Width, cam.Height
		}
		doc.Frames = append(doc.Frames, f)
	}
	return doc
}

// WritePoseDocument writes doc as indented JSON to path, creating parent
// directories. Failures wrap roof.ErrPoseWriteFailed.
func WritePoseDocument(fs fsutil.FileSystem, path string, doc *PoseDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pose document: %v: %w", err, roof.ErrPoseWriteFailed)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %v: %w", filepath.Dir(path), err, roof.ErrPoseWriteFailed)
	}
	if err := fs.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %v: %w", path, err, roof.ErrPoseWriteFailed)
	}
	return nil
}

// ReadPoseDocument loads a pose document written by WritePoseDocument.
func ReadPoseDocument(fs fsutil.FileSystem, path string) (*PoseDocument, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc PoseDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pose document: %w", err)
	}
	return &doc, nil
}
