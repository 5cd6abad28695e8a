package poses

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/roof.report/internal/roof/geometry"
)

// Camera model names written by COLMAP.
const (
	SimplePinhole = "SIMPLE_PINHOLE"
	Pinhole       = "PINHOLE"
	SimpleRadial  = "SIMPLE_RADIAL"
	Radial        = "RADIAL"
)

// Camera is one line of cameras.txt.
type Camera struct {
	ID     int
	Model  string
	Width  int
	Height int
	Params []float64
}

// PinholeFamily reports whether params[0] is the focal length.
func (c Camera) PinholeFamily() bool {
	switch c.Model {
	case SimplePinhole, Pinhole, SimpleRadial, Radial:
		return true
	}
	return false
}

// Intrinsics are per-frame focal length and principal point in pixels.
type Intrinsics struct {
	FocalX, FocalY float64
	CX, CY         float64
}

// Intrinsics returns the focal length and principal point of a
// pinhole-family camera. PINHOLE carries fx, fy, cx, cy; the SIMPLE_* and
// RADIAL models carry f, cx, cy, .... Missing principal points default to
// the image centre.
func (c Camera) Intrinsics() (Intrinsics, bool) {
	if !c.PinholeFamily() || len(c.Params) == 0 || c.Params[0] <= 0 {
		return Intrinsics{}, false
	}
	in := Intrinsics{
		FocalX: c.Params[0],
		FocalY: c.Params[0],
		CX:     float64(c.Width) / 2,
		CY:     float64(c.Height) / 2,
	}
	if c.Model == Pinhole {
		if len(c.Params) >= 4 {
			in.FocalY = c.Params[1]
			in.CX, in.CY = c.Params[2], c.Params[3]
		}
		return in, true
	}
	if len(c.Params) >= 3 {
		in.CX, in.CY = c.Params[1], c.Params[2]
	}
	return in, true
}

// ImageRecord is the pose line of one image in images.txt.
type ImageRecord struct {
	ID          int
	Quaternion  geometry.Quaternion
	Translation r3.Vector
	CameraID    int
	Name        string
}

// Model is a parsed COLMAP text model.
type Model struct {
	Cameras []Camera
	Images  []ImageRecord
	Points  []r3.Vector
}

// ErrNoModel is returned when a directory lacks cameras.txt or images.txt.
var ErrNoModel = errors.New("colmap text model not found")

// lines yields non-comment lines with their 1-based number. Blank lines are
// passed through because images.txt uses them for empty point tracks.
func lines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ParseCameras reads cameras.txt: CAMERA_ID MODEL WIDTH HEIGHT PARAMS[].
// Cameras keep file order.
func ParseCameras(r io.Reader) ([]Camera, error) {
	var cams []Camera
	err := lines(r, func(n int, line string) error {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil
		}
		if len(fields) < 4 {
			return fmt.Errorf("cameras.txt line %d: want at least 4 fields, got %d", n, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("cameras.txt line %d: camera id: %w", n, err)
		}
		w, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("cameras.txt line %d: width: %w", n, err)
		}
		h, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("cameras.txt line %d: height: %w", n, err)
		}
		params, err := parseFloats(fields[4:])
		if err != nil {
			return fmt.Errorf("cameras.txt line %d: params: %w", n, err)
		}
		cams = append(cams, Camera{ID: id, Model: fields[1], Width: w, Height: h, Params: params})
		return nil
	})
	return cams, err
}

// ParseImages reads images.txt. Each image takes two lines: the pose
// (IMAGE_ID QW QX QY QZ TX TY TZ CAMERA_ID NAME) and its 2D point track,
// which may be blank and is discarded.
func ParseImages(r io.Reader) ([]ImageRecord, error) {
	var (
		images          []ImageRecord
		expectingPoints bool
	)
	err := lines(r, func(n int, line string) error {
		if expectingPoints {
			expectingPoints = false
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil
		}
		if len(fields) < 10 {
			return fmt.Errorf("images.txt line %d: want at least 10 fields, got %d", n, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("images.txt line %d: image id: %w", n, err)
		}
		v, err := parseFloats(fields[1:8])
		if err != nil {
			return fmt.Errorf("images.txt line %d: pose: %w", n, err)
		}
		camID, err := strconv.Atoi(fields[8])
		if err != nil {
			return fmt.Errorf("images.txt line %d: camera id: %w", n, err)
		}
		images = append(images, ImageRecord{
			ID:          id,
			Quaternion:  geometry.Quaternion{W: v[0], X: v[1], Y: v[2], Z: v[3]},
			Translation: r3.Vector{X: v[4], Y: v[5], Z: v[6]},
			CameraID:    camID,
			Name:        strings.Join(fields[9:], " "),
		})
		expectingPoints = true
		return nil
	})
	return images, err
}

// ParsePoints3D reads the XYZ of every line of points3D.txt.
func ParsePoints3D(r io.Reader) ([]r3.Vector, error) {
	var pts []r3.Vector
	err := lines(r, func(n int, line string) error {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil
		}
		if len(fields) < 4 {
			return fmt.Errorf("points3D.txt line %d: want at least 4 fields, got %d", n, len(fields))
		}
		v, err := parseFloats(fields[1:4])
		if err != nil {
			return fmt.Errorf("points3D.txt line %d: %w", n, err)
		}
		pts = append(pts, r3.Vector{X: v[0], Y: v[1], Z: v[2]})
		return nil
	})
	return pts, err
}

func parseFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return parse(f)
}

// ReadModel parses cameras.txt, images.txt and, when present,
// points3D.txt from dir.
func ReadModel(dir string) (*Model, error) {
	cams, err := parseFile(filepath.Join(dir, "cameras.txt"), ParseCameras)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoModel)
	}
	if err != nil {
		return nil, err
	}
	images, err := parseFile(filepath.Join(dir, "images.txt"), ParseImages)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoModel)
	}
	if err != nil {
		return nil, err
	}
	points, err := parseFile(filepath.Join(dir, "points3D.txt"), ParsePoints3D)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &Model{Cameras: cams, Images: images, Points: points}, nil
}

// FieldOfView returns 2·atan(width / 2f) for the first pinhole-family
// camera, or fallback when there is none.
func FieldOfView(cams []Camera, fallback float64) float64 {
	for _, c := range cams {
		in, ok := c.Intrinsics()
		if !ok || c.Width <= 0 {
			continue
		}
		return 2 * math.Atan(float64(c.Width)/(2*in.FocalX))
	}
	return fallback
}

// PoseSetOptions control conversion of a Model to a PoseSet.
type PoseSetOptions struct {
	DefaultFOV    float64
	EstimateScale bool
}

// PoseSet converts m to a recovered PoseSet. Quaternions are normalised;
// a zero quaternion is an error.
func (m *Model) PoseSet(opts PoseSetOptions) (*PoseSet, error) {
	if len(m.Images) == 0 {
		return nil, errors.New("model has no registered images")
	}
	fallback := opts.DefaultFOV
	if fallback <= 0 {
		fallback = DefaultFOV
	}
	ps := &PoseSet{
		FOV:         FieldOfView(m.Cameras, fallback),
		Provenance:  Recovered,
		Cameras:     m.Cameras,
		NumPoints:   len(m.Points),
		ScaleFactor: 1,
		Poses:       make([]CameraPose, 0, len(m.Images)),
	}
	for _, img := range m.Images {
		rot, err := geometry.QuaternionToRotation(img.Quaternion)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", img.ID, img.Name, err)
		}
		ps.Poses = append(ps.Poses, CameraPose{
			ID:          img.ID,
			Rotation:    rot,
			Translation: img.Translation,
			ImageName:   img.Name,
			CameraID:    img.CameraID,
		})
	}
	if opts.EstimateScale {
		ps.ScaleFactor = EstimateScale(m.Points, ps.Poses)
		for i := range ps.Poses {
			ps.Poses[i].Translation = ps.Poses[i].Translation.Mul(ps.ScaleFactor)
		}
	}
	return ps, nil
}
