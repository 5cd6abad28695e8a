package poses

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/geometry"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestSyntheticRig_Layout(t *testing.T) {
	for _, n := range []int{3, 7, 24} {
		images := make([]string, n)
		for i := range images {
			images[i] = "img.jpg"
		}
		ps := DefaultRig().Generate(images)

		require.Len(t, ps.Poses, n)
		assert.Equal(t, Synthetic, ps.Provenance)
		assert.Equal(t, DefaultFOV, ps.FOV)

		for i, p := range ps.Poses {
			require.True(t, geometry.IsOrthonormal(p.Rotation, 1e-9), "pose %d", i)

			c := p.Center()
			assert.InDelta(t, DefaultRigRadius, math.Hypot(c.X, c.Y), 1e-9, "pose %d horizontal radius", i)

			theta := float64(i) * 2 * math.Pi / float64(n)
			assert.InDelta(t, 2.0+0.5*math.Sin(2*theta), c.Z, 1e-9, "pose %d height", i)

			toOrigin := c.Mul(-1).Normalize()
			fwd := geometry.Forward(p.Rotation)
			assert.InDelta(t, 1.0, fwd.Dot(toOrigin), 1e-9, "pose %d forward", i)
		}
	}
}

func TestSyntheticRig_Empty(t *testing.T) {
	ps := DefaultRig().Generate(nil)
	assert.Empty(t, ps.Poses)
}

func TestDiscoverImages(t *testing.T) {
	dir := t.TempDir()
	want := writePNGs(t, dir, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake.jpg"), []byte("not a jpeg"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	got, err := DiscoverImages(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = DiscoverImages(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestHasImageExtension(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "a.png", "a.bmp", "a.tif", "a.TIFF"} {
		assert.True(t, HasImageExtension(name), name)
	}
	for _, name := range []string{"a.gif", "a", "a.jpg.txt"} {
		assert.False(t, HasImageExtension(name), name)
	}
}

type fakeBackend struct {
	rec   *Reconstruction
	err   error
	panic bool
	calls int
}

func (f *fakeBackend) Recover(ctx context.Context, imagesDir, workDir string) (*Reconstruction, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.rec, f.err
}

func TestAdapter_InsufficientImages(t *testing.T) {
	dir := t.TempDir()
	writePNGs(t, dir, 2)
	backend := &fakeBackend{}

	_, err := NewAdapter(backend).Recover(context.Background(), dir, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, roof.ErrInsufficientImages))

	var iie *roof.InsufficientImagesError
	require.True(t, errors.As(err, &iie))
	assert.Equal(t, 2, iie.Count)
	assert.Equal(t, 0, backend.calls, "backend must not run without enough images")
}

func TestAdapter_MinImagesFloor(t *testing.T) {
	dir := t.TempDir()
	writePNGs(t, dir, 2)
	a := NewAdapter(&fakeBackend{})
	a.MinImages = 1

	_, err := a.Recover(context.Background(), dir, t.TempDir())
	var iie *roof.InsufficientImagesError
	require.True(t, errors.As(err, &iie))
	assert.Equal(t, roof.MinImages, iie.Min)
}

func TestAdapter_FallsBackToRig(t *testing.T) {
	tests := []struct {
		name    string
		backend ReconstructionBackend
	}{
		{"error", &fakeBackend{err: errors.New("mapper crashed")}},
		{"nil result", &fakeBackend{}},
		{"no poses", &fakeBackend{rec: &Reconstruction{Poses: &PoseSet{}}}},
		{"panic", &fakeBackend{panic: true}},
		{"no backend", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePNGs(t, dir, 4)
			rec, err := NewAdapter(tt.backend).Recover(context.Background(), dir, t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, Synthetic, rec.Poses.Provenance)
			assert.Len(t, rec.Poses.Poses, 4)
			assert.Equal(t, "img_00.png", rec.Poses.Poses[0].ImageName)
		})
	}
}

func TestAdapter_UsesRecoveredPoses(t *testing.T) {
	dir := t.TempDir()
	writePNGs(t, dir, 3)
	recovered := &PoseSet{
		Provenance: Recovered,
		FOV:        1.0,
		Poses:      []CameraPose{{ID: 1, Rotation: geometry.IdentityRotation, ImageName: "img_00.png"}},
	}
	rec, err := NewAdapter(&fakeBackend{rec: &Reconstruction{Poses: recovered}}).
		Recover(context.Background(), dir, t.TempDir())
	require.NoError(t, err)
	assert.Same(t, recovered, rec.Poses)
}

func TestAdapter_MeshOnlyBackend(t *testing.T) {
	dir := t.TempDir()
	writePNGs(t, dir, 3)
	rec, err := NewAdapter(&fakeBackend{rec: &Reconstruction{MeshPath: "/tmp/roof.obj"}}).
		Recover(context.Background(), dir, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/roof.obj", rec.MeshPath)
	assert.Equal(t, Synthetic, rec.Poses.Provenance)
}

// scriptedRunner fakes the colmap CLI by writing the files each step
// would produce.
type scriptedRunner struct {
	t        *testing.T
	steps    []string
	failStep string
	noModel  bool
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	step := args[0]
	r.steps = append(r.steps, step)
	if step == r.failStep {
		return []byte("fatal: something went wrong"), errors.New("exit status 1")
	}
	switch step {
	case "mapper":
		if !r.noModel {
			if err := os.MkdirAll(filepath.Join(argAfter(args, "--output_path"), "0"), 0o755); err != nil {
				r.t.Fatal(err)
			}
		}
	case "model_converter":
		writeModel(r.t, argAfter(args, "--output_path"), true)
	}
	return nil, nil
}

func TestColmapBackend_Success(t *testing.T) {
	runner := &scriptedRunner{t: t}
	b := NewColmapBackend("")
	b.Runner = runner

	rec, err := b.Recover(context.Background(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"feature_extractor", "exhaustive_matcher", "mapper", "model_converter"}, runner.steps)
	assert.Equal(t, Recovered, rec.Poses.Provenance)
	assert.Len(t, rec.Poses.Poses, 3)
	assert.InDelta(t, 2*math.Atan(0.8), rec.Poses.FOV, 1e-12)
	assert.Equal(t, 3, rec.Poses.NumPoints)
}

func TestColmapBackend_Failures(t *testing.T) {
	tests := []struct {
		name   string
		runner *scriptedRunner
	}{
		{"feature extraction fails", &scriptedRunner{failStep: "feature_extractor"}},
		{"mapper fails", &scriptedRunner{failStep: "mapper"}},
		{"mapper produces nothing", &scriptedRunner{noModel: true}},
		{"converter fails", &scriptedRunner{failStep: "model_converter"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.runner.t = t
			b := NewColmapBackend("colmap")
			b.Runner = tt.runner
			_, err := b.Recover(context.Background(), t.TempDir(), t.TempDir())
			require.Error(t, err)
			assert.True(t, errors.Is(err, roof.ErrReconstructionFailed), "got %v", err)
		})
	}
}

func TestBuildDocument_Recovered(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, true)
	m, err := ReadModel(dir)
	require.NoError(t, err)
	ps, err := m.PoseSet(PoseSetOptions{})
	require.NoError(t, err)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := BuildDocument(ps, created)

	require.Len(t, doc.Frames, 3)
	assert.Equal(t, ps.FOV, doc.CameraAngleX)
	assert.False(t, doc.Metadata.Synthetic)
	assert.Equal(t, 2, doc.Metadata.NumCameras)
	assert.Equal(t, created, doc.Metadata.CreatedAt)

	// identity rotation, t = (0,0,5): flipping negates the Y and Z columns
	want := [4][4]float64{
		{1, 0, 0, 0},
		{0, -1, 0, 0},
		{0, 0, -1, 5},
		{0, 0, 0, 1},
	}
	assert.Equal(t, want, doc.Frames[0].TransformMatrix)

	f := doc.Frames[0]
	require.NotNil(t, f.FocalX)
	assert.Equal(t, 1000.0, *f.FocalX)
	assert.Equal(t, 1010.0, *f.FocalY)
	assert.Equal(t, 800.0, *f.CX)
	assert.Equal(t, 1600, f.Width)
}

func TestBuildDocument_SyntheticNotFlipped(t *testing.T) {
	ps := DefaultRig().Generate([]string{"a.jpg", "b.jpg", "c.jpg"})
	doc := BuildDocument(ps, time.Now())

	assert.True(t, doc.Metadata.Synthetic)
	assert.Equal(t, Synthetic, doc.Metadata.Provenance)
	for i, f := range doc.Frames {
		assert.Equal(t, ps.Poses[i].Transform().Matrix(), f.TransformMatrix)
		assert.Nil(t, f.FocalX)
	}
}

func TestWritePoseDocument(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	ps := DefaultRig().Generate([]string{"a.jpg", "b.jpg", "c.jpg"})
	doc := BuildDocument(ps, time.Now())

	path := filepath.Join("/jobs", "abc", PoseDocumentName)
	require.NoError(t, WritePoseDocument(fs, path, doc))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"camera_angle_x"`))
	assert.True(t, strings.Contains(string(data), `"transform_matrix"`))

	back, err := ReadPoseDocument(fs, path)
	require.NoError(t, err)
	assert.Len(t, back.Frames, 3)
	assert.Equal(t, "b.jpg", back.Frames[1].FilePath)
}

func TestWritePoseDocument_Failure(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.FailWrites(errors.New("disk full"))

	doc := BuildDocument(DefaultRig().Generate([]string{"a.jpg"}), time.Now())
	err := WritePoseDocument(fs, "/jobs/x/transforms.json", doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, roof.ErrPoseWriteFailed))
}

func TestEstimateScale(t *testing.T) {
	// longest side 30 → 0.5, cameras far apart → no nudge
	pts := []r3.Vector{{}, {X: 30, Y: 1, Z: 1}}
	far := []CameraPose{
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: 10}},
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: -10}},
	}
	assert.InDelta(t, 0.5, EstimateScale(pts, far), 1e-12)

	// cameras 1 unit from their centroid → ×5
	near := []CameraPose{
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: 1}},
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: -1}},
	}
	assert.InDelta(t, 2.5, EstimateScale(pts, near), 1e-12)

	// cameras 200 units out → ×20/200
	veryFar := []CameraPose{
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: 200}},
		{Rotation: geometry.IdentityRotation, Translation: r3.Vector{X: -200}},
	}
	assert.InDelta(t, 0.05, EstimateScale(pts, veryFar), 1e-12)

	assert.Equal(t, 1.0, EstimateScale(nil, nil))
}
