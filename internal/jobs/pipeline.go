package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/banshee-data/roof.report/internal/artifact"
	"github.com/banshee-data/roof.report/internal/charts"
	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/mesh"
	"github.com/banshee-data/roof.report/internal/roof/poses"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/timeutil"
)

const (
	ImagesDirName  = "images"
	ReportFileName = "report.json"
	MeshFileName   = "mesh.obj"
)

// Pipeline runs jobs from uploaded images to a stored report. Each job is
// confined to Workspace/<id>. At most MaxConcurrent jobs run at once.
type Pipeline struct {
	Registry      *Registry
	FS            fsutil.FileSystem
	Workspace     string
	Poses         *poses.Adapter
	Reconstructor MeshReconstructor // optional
	Assembler     *report.Assembler
	Artifacts     artifact.Store // optional
	Clock         timeutil.Clock

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPipeline returns a pipeline with the default pose adapter (no
// backend, so always synthetic) and assembler. Callers replace fields to
// configure it.
func NewPipeline(reg *Registry, fsys fsutil.FileSystem, workspace string, maxConcurrent int) *Pipeline {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{
		Registry:  reg,
		FS:        fsys,
		Workspace: workspace,
		Poses:     poses.NewAdapter(nil),
		Assembler: report.NewAssembler(),
		Clock:     timeutil.RealClock{},
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// JobDir is the job-scoped working directory.
func (p *Pipeline) JobDir(id string) string { return filepath.Join(p.Workspace, id) }

// ImagesDir is where a job's uploaded images live.
func (p *Pipeline) ImagesDir(id string) string { return filepath.Join(p.JobDir(id), ImagesDirName) }

// Submit runs the job in the background. The run is detached from ctx
// cancellation: once started a job always reaches complete or error.
func (p *Pipeline) Submit(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		if err := p.Run(ctx, id); err != nil {
			monitoring.Logf("[JobPipeline] job %s failed: %v", id, err)
		}
	}()
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Run executes the job synchronously and returns the error that failed it,
// if any. The registry always ends in a terminal state.
func (p *Pipeline) Run(ctx context.Context, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if err != nil {
			if _, ferr := p.Registry.Fail(id, err); ferr != nil {
				monitoring.Logf("[JobPipeline] job %s: %v", id, ferr)
			}
		}
	}()

	workDir := p.JobDir(id)
	imagesDir := p.ImagesDir(id)

	if _, err := p.Registry.Advance(id, StageDiscoverImages, "Discovering images"); err != nil {
		return err
	}
	images, err := poses.DiscoverImages(imagesDir)
	if err != nil {
		return err
	}

	p.Registry.Advance(id, StageRecoverPoses, fmt.Sprintf("Recovering camera poses from %d images", len(images)))
	rec, err := p.Poses.Recover(ctx, imagesDir, workDir)
	if err != nil {
		return err
	}
	synthetic := rec.Poses.Provenance == poses.Synthetic && rec.MeshPath == ""
	if synthetic {
		p.Registry.Warn(id, "Camera pose recovery failed; using synthetic camera rig")
	}

	p.Registry.Advance(id, StageWritePoses, "Writing camera poses")
	posePath := filepath.Join(workDir, poses.PoseDocumentName)
	doc := poses.BuildDocument(rec.Poses, p.Clock.Now())
	if err := poses.WritePoseDocument(p.FS, posePath, doc); err != nil {
		return err
	}

	p.Registry.Advance(id, StageReconstructMesh, "Reconstructing mesh")
	meshPath := rec.MeshPath
	if meshPath == "" && p.Reconstructor != nil {
		meshPath, err = p.Reconstructor.Reconstruct(ctx, posePath, workDir)
		if err != nil {
			monitoring.Logf("[JobPipeline] job %s: %v", id, err)
			p.Registry.Warn(id, "Mesh reconstruction failed")
			meshPath = ""
		}
	}

	p.Registry.Advance(id, StageMeasure, "Measuring roof")
	var outcome report.Outcome
	if meshPath == "" {
		cause := fmt.Errorf("no mesh reconstructed: %w", roof.ErrMeasurementExtractionFailed)
		outcome = report.Outcome{Report: report.Placeholder(cause)}
	} else {
		outcome = p.Assembler.RunFile(meshPath, synthetic)
	}
	if outcome.Measurements == nil {
		p.Registry.Warn(id, "Measurements unavailable; report contains estimated values")
	}

	p.Registry.Advance(id, StageAssembleReport, "Writing report")
	data, err := json.MarshalIndent(outcome.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := p.FS.WriteFileAtomic(filepath.Join(workDir, ReportFileName), data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if outcome.Measurements == nil {
		meshPath = ""
	}
	if err := p.publish(ctx, id, outcome, data, posePath, meshPath); err != nil {
		monitoring.Logf("[JobPipeline] job %s: artifact publishing incomplete: %v", id, err)
		p.Registry.Warn(id, "Some report artifacts could not be saved")
	}

	_, err = p.Registry.Complete(id, outcome.Report)
	return err
}

// publish renders the pitch histogram, keeps the measured mesh in the job
// directory as MeshFileName and copies the job's outputs to the artifact
// store. Failures are collected, never fatal.
func (p *Pipeline) publish(ctx context.Context, id string, outcome report.Outcome, reportJSON []byte, posePath, meshPath string) error {
	var errs error
	files := map[string][]byte{ReportFileName: reportJSON}

	if meshPath != "" {
		obj, err := meshOBJ(meshPath)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			files[MeshFileName] = obj
			if dst := filepath.Join(p.JobDir(id), MeshFileName); filepath.Clean(meshPath) != dst {
				errs = multierr.Append(errs, p.FS.WriteFile(dst, obj, 0o644))
			}
		}
	}

	if outcome.Measurements != nil {
		var buf bytes.Buffer
		if err := charts.PitchHistogramPNG(&buf, outcome.Measurements.Histogram); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			files[charts.HistogramFileName] = buf.Bytes()
			errs = multierr.Append(errs,
				p.FS.WriteFile(filepath.Join(p.JobDir(id), charts.HistogramFileName), buf.Bytes(), 0o644))
		}
	}

	if p.Artifacts == nil {
		return errs
	}
	if doc, err := p.FS.ReadFile(posePath); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		files[poses.PoseDocumentName] = doc
	}
	for name, content := range files {
		if err := p.Artifacts.Put(ctx, id, name, content); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upload %s: %w", name, err))
		}
	}
	return errs
}

// meshOBJ returns the mesh at path as OBJ text. Other formats are
// converted.
func meshOBJ(path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".obj") {
		return os.ReadFile(path)
	}
	m, err := mesh.Load(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := m.WriteOBJ(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
