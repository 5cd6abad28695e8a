package poses

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
)

// Reconstruction is what a backend recovered: camera poses, a mesh, or
// both.
type Reconstruction struct {
	Poses    *PoseSet
	MeshPath string
}

// ReconstructionBackend recovers camera poses (or a mesh) from a directory
// of images. workDir is job-scoped scratch space. Backends are fallible and
// may be nondeterministic.
type ReconstructionBackend interface {
	Recover(ctx context.Context, imagesDir, workDir string) (*Reconstruction, error)
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ColmapBackend recovers poses with the COLMAP command line: feature
// extraction, exhaustive matching, sparse mapping, then export of the first
// model as text.
type ColmapBackend struct {
	Binary        string
	Runner        CommandRunner
	DefaultFOV    float64
	EstimateScale bool
	UseGPU        bool
}

// NewColmapBackend returns a backend running binary (default "colmap").
func NewColmapBackend(binary string) *ColmapBackend {
	if binary == "" {
		binary = "colmap"
	}
	return &ColmapBackend{Binary: binary, Runner: ExecRunner{}, DefaultFOV: DefaultFOV}
}

func (b *ColmapBackend) run(ctx context.Context, step string, args ...string) error {
	monitoring.Logf("[Colmap] %s %v", step, args)
	out, err := b.Runner.Run(ctx, b.Binary, append([]string{step}, args...)...)
	if err != nil {
		tail := out
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return fmt.Errorf("colmap %s: %v: %s: %w", step, err, tail, roof.ErrReconstructionFailed)
	}
	return nil
}

// Recover implements ReconstructionBackend. Every failure wraps
// roof.ErrReconstructionFailed.
func (b *ColmapBackend) Recover(ctx context.Context, imagesDir, workDir string) (*Reconstruction, error) {
	colmapDir := filepath.Join(workDir, "colmap")
	dbPath := filepath.Join(colmapDir, "database.db")
	sparseDir := filepath.Join(colmapDir, "sparse")
	textDir := filepath.Join(colmapDir, "text")
	for _, d := range []string{sparseDir, textDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %v: %w", d, err, roof.ErrReconstructionFailed)
		}
	}

	gpu := "0"
	if b.UseGPU {
		gpu = "1"
	}
	if err := b.run(ctx, "feature_extractor",
		"--database_path", dbPath,
		"--image_path", imagesDir,
		"--ImageReader.single_camera", "1",
		"--SiftExtraction.use_gpu", gpu,
	); err != nil {
		return nil, err
	}
	if err := b.run(ctx, "exhaustive_matcher",
		"--database_path", dbPath,
		"--SiftMatching.use_gpu", gpu,
	); err != nil {
		return nil, err
	}
	if err := b.run(ctx, "mapper",
		"--database_path", dbPath,
		"--image_path", imagesDir,
		"--output_path", sparseDir,
	); err != nil {
		return nil, err
	}

	modelDir := filepath.Join(sparseDir, "0")
	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("mapper produced no model: %w", roof.ErrReconstructionFailed)
	}
	if err := b.run(ctx, "model_converter",
		"--input_path", modelDir,
		"--output_path", textDir,
		"--output_type", "TXT",
	); err != nil {
		return nil, err
	}

	model, err := ReadModel(textDir)
	if err != nil {
		return nil, fmt.Errorf("read model: %v: %w", err, roof.ErrReconstructionFailed)
	}
	ps, err := model.PoseSet(PoseSetOptions{DefaultFOV: b.DefaultFOV, EstimateScale: b.EstimateScale})
	if err != nil {
		return nil, fmt.Errorf("convert model: %v: %w", err, roof.ErrReconstructionFailed)
	}
	monitoring.Logf("[Colmap] recovered %d poses, %d cameras, %d points", len(ps.Poses), len(ps.Cameras), ps.NumPoints)
	return &Reconstruction{Poses: ps}, nil
}

// Adapter discovers a job's images, asks the backend for poses and falls
// back to the synthetic rig when the backend cannot deliver.
type Adapter struct {
	Backend   ReconstructionBackend
	Rig       SyntheticRig
	MinImages int
}

// NewAdapter returns an Adapter using backend and the default rig.
func NewAdapter(backend ReconstructionBackend) *Adapter {
	return &Adapter{Backend: backend, Rig: DefaultRig(), MinImages: roof.MinImages}
}

// Recover returns a reconstruction whose Poses are always set. Fewer than
// MinImages valid images is fatal (roof.ErrInsufficientImages), and
// MinImages is never taken below roof.MinImages. Any backend failure is
// logged and replaced by the synthetic rig.
func (a *Adapter) Recover(ctx context.Context, imagesDir, workDir string) (*Reconstruction, error) {
	images, err := DiscoverImages(imagesDir)
	if err != nil {
		return nil, err
	}
	minImages := a.MinImages
	if minImages < roof.MinImages {
		minImages = roof.MinImages
	}
	if len(images) < minImages {
		return nil, &roof.InsufficientImagesError{Count: len(images), Min: minImages}
	}

	rec, err := a.recoverFromBackend(ctx, imagesDir, workDir)
	if err != nil {
		monitoring.Logf("[PoseRecovery] %v; using synthetic rig for %d images", err, len(images))
		rec = &Reconstruction{}
	}
	if rec.Poses == nil {
		rec.Poses = a.Rig.Generate(images)
	}
	return rec, nil
}

func (a *Adapter) recoverFromBackend(ctx context.Context, imagesDir, workDir string) (rec *Reconstruction, err error) {
	if a.Backend == nil {
		return nil, fmt.Errorf("no backend configured: %w", roof.ErrReconstructionFailed)
	}
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("backend panic: %v: %w", r, roof.ErrReconstructionFailed)
		}
	}()
	rec, err = a.Backend.Recover(ctx, imagesDir, workDir)
	if err != nil {
		if !errors.Is(err, roof.ErrReconstructionFailed) {
			err = fmt.Errorf("%v: %w", err, roof.ErrReconstructionFailed)
		}
		return nil, err
	}
	if rec == nil || (rec.MeshPath == "" && (rec.Poses == nil || len(rec.Poses.Poses) == 0)) {
		return nil, fmt.Errorf("backend returned no poses: %w", roof.ErrReconstructionFailed)
	}
	if rec.Poses != nil && len(rec.Poses.Poses) == 0 {
		rec.Poses = nil
	}
	return rec, nil
}
