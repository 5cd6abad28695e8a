package jobs

import (
	"github.com/banshee-data/roof.report/internal/config"
	"github.com/banshee-data/roof.report/internal/roof/features"
	"github.com/banshee-data/roof.report/internal/roof/measure"
	"github.com/banshee-data/roof.report/internal/roof/poses"
	"github.com/banshee-data/roof.report/internal/roof/report"
	"github.com/banshee-data/roof.report/internal/roof/segment"
)

// NewAssemblerFromConfig builds the measurement engine and feature
// detector from cfg's calibration, histogram, segmentation and feature
// tunables.
func NewAssemblerFromConfig(cfg *config.Config) *report.Assembler {
	seg := segment.NewSegmenter()
	seg.Params = segment.Params{Eps: cfg.GetSegmentEps(), MinPts: cfg.GetSegmentMinPts()}

	eng := measure.NewEngine()
	eng.Calibration = measure.Calibration{
		AreaFactor:   cfg.GetAreaFactor(),
		LengthFactor: cfg.GetLengthFactor(),
	}
	eng.Bins = cfg.GetPitchBins()
	eng.TopN = cfg.GetPitchTopN()
	eng.Segmenter = seg

	det := features.NewDetector()
	det.BodyFraction = cfg.GetFeatureBodyFraction()
	det.LengthFactor = cfg.GetLengthFactor()
	det.AreaFactor = cfg.GetAreaFactor()
	det.Thresholds = features.Thresholds{
		ChimneyMinHeight:     cfg.GetChimneyMinHeightFt(),
		ChimneyMaxFootprint:  cfg.GetChimneyMaxFootprintFt(),
		VentMaxFootprint:     cfg.GetVentMaxFootprintFt(),
		VentMaxHeight:        cfg.GetVentMaxHeightFt(),
		SkylightMinFootprint: cfg.GetSkylightMinFootprintFt(),
		SkylightMaxHeight:    cfg.GetSkylightMaxHeightFt(),
	}

	return &report.Assembler{Engine: eng, Detector: det}
}

// NewRigFromConfig builds the synthetic camera rig.
func NewRigFromConfig(cfg *config.Config) poses.SyntheticRig {
	return poses.SyntheticRig{
		Radius:          cfg.GetRigRadius(),
		BaseHeight:      cfg.GetRigBaseHeight(),
		HeightAmplitude: cfg.GetRigHeightAmplitude(),
		FOV:             cfg.GetDefaultFOVRad(),
	}
}

// NewColmapFromConfig builds a COLMAP backend running binary.
func NewColmapFromConfig(cfg *config.Config, binary string) *poses.ColmapBackend {
	b := poses.NewColmapBackend(binary)
	b.DefaultFOV = cfg.GetDefaultFOVRad()
	b.EstimateScale = cfg.GetEstimateScale()
	return b
}

// NewAdapterFromConfig builds the pose recovery adapter around backend.
func NewAdapterFromConfig(cfg *config.Config, backend poses.ReconstructionBackend) *poses.Adapter {
	a := poses.NewAdapter(backend)
	a.Rig = NewRigFromConfig(cfg)
	a.MinImages = cfg.GetMinImages()
	return a
}
