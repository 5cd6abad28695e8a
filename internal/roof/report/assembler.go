package report

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/roof"
	"github.com/banshee-data/roof.report/internal/roof/features"
	"github.com/banshee-data/roof.report/internal/roof/measure"
	"github.com/banshee-data/roof.report/internal/roof/mesh"
)

// Assembler runs the measurement engine and feature detector over a mesh
// and always produces a report.
type Assembler struct {
	Engine   *measure.Engine
	Detector *features.Detector
}

// NewAssembler returns an Assembler with default engine and detector.
func NewAssembler() *Assembler {
	return &Assembler{Engine: measure.NewEngine(), Detector: features.NewDetector()}
}

// Outcome is an assembled report together with the intermediate results it
// was built from. Measurements is nil when the report is a placeholder.
type Outcome struct {
	Report       *MeasurementReport
	Measurements *measure.Measurements
	Features     features.Result
}

// FromFile loads the mesh at path and assembles a report. Load failures
// yield the placeholder report.
func (a *Assembler) FromFile(path string, synthetic bool) *MeasurementReport {
	return a.RunFile(path, synthetic).Report
}

// FromMesh measures m and detects features concurrently. Any failure,
// including a panic inside an estimator, yields the placeholder report.
func (a *Assembler) FromMesh(m *mesh.Mesh, synthetic bool) *MeasurementReport {
	return a.Run(m, synthetic).Report
}

// RunFile is FromFile keeping the intermediate results.
func (a *Assembler) RunFile(path string, synthetic bool) Outcome {
	m, err := mesh.Load(path)
	if err != nil {
		err = fmt.Errorf("load %s: %v: %w", path, err, roof.ErrMeasurementExtractionFailed)
		monitoring.Logf("[ReportAssembler] %v; using placeholder report", err)
		return Outcome{Report: Placeholder(err)}
	}
	return a.Run(m, synthetic)
}

// Run is FromMesh keeping the intermediate results.
func (a *Assembler) Run(m *mesh.Mesh, synthetic bool) Outcome {
	var (
		meas  *measure.Measurements
		feats features.Result
		g     errgroup.Group
	)
	g.Go(func() (err error) {
		defer recoverInto(&err)
		meas, err = a.Engine.Measure(m)
		return err
	})
	g.Go(func() (err error) {
		defer recoverInto(&err)
		if m != nil {
			feats = a.Detector.Detect(m)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		monitoring.Logf("[ReportAssembler] measurement failed: %v; using placeholder report", err)
		return Outcome{Report: Placeholder(err)}
	}
	return Outcome{Report: Assemble(meas, feats, synthetic), Measurements: meas, Features: feats}
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v: %w", r, roof.ErrMeasurementExtractionFailed)
	}
}
