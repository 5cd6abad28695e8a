package config

import "github.com/banshee-data/roof.report/internal/units"

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// GetAreaFactor returns the mesh-units² to ft² factor (default: metres).
func (c *Config) GetAreaFactor() float64 {
	return orFloat(c.AreaFactor, units.SquareMetresToSquareFeet)
}

// GetLengthFactor returns the mesh-units to ft factor (default: metres).
func (c *Config) GetLengthFactor() float64 {
	return orFloat(c.LengthFactor, units.MetresToFeet)
}

func (c *Config) GetPitchBins() int { return orInt(c.PitchBins, 36) }
func (c *Config) GetPitchTopN() int { return orInt(c.PitchTopN, 3) }

func (c *Config) GetSegmentEps() float64 { return orFloat(c.SegmentEps, 0.1) }
func (c *Config) GetSegmentMinPts() int  { return orInt(c.SegmentMinPts, 5) }

func (c *Config) GetFeatureBodyFraction() float64 { return orFloat(c.FeatureBodyFraction, 0.1) }

func (c *Config) GetChimneyMinHeightFt() float64    { return orFloat(c.ChimneyMinHeightFt, 3.28) }
func (c *Config) GetChimneyMaxFootprintFt() float64 { return orFloat(c.ChimneyMaxFootprintFt, 3.28) }
func (c *Config) GetVentMaxFootprintFt() float64    { return orFloat(c.VentMaxFootprintFt, 1.64) }
func (c *Config) GetVentMaxHeightFt() float64       { return orFloat(c.VentMaxHeightFt, 0.98) }
func (c *Config) GetSkylightMinFootprintFt() float64 {
	return orFloat(c.SkylightMinFootprintFt, 1.64)
}
func (c *Config) GetSkylightMaxHeightFt() float64 { return orFloat(c.SkylightMaxHeightFt, 0.98) }

func (c *Config) GetRigRadius() float64          { return orFloat(c.RigRadius, 4.0) }
func (c *Config) GetRigBaseHeight() float64      { return orFloat(c.RigBaseHeight, 2.0) }
func (c *Config) GetRigHeightAmplitude() float64 { return orFloat(c.RigHeightAmplitude, 0.5) }

// GetDefaultFOVRad returns the horizontal field of view used when no
// pinhole camera is available (≈49.1°).
func (c *Config) GetDefaultFOVRad() float64 {
	return orFloat(c.DefaultFOVRad, 0.8575560450553894)
}

func (c *Config) GetMinImages() int         { return orInt(c.MinImages, 3) }
func (c *Config) GetMaxConcurrentJobs() int { return orInt(c.MaxConcurrentJobs, 3) }

// GetEstimateScale reports whether points3D scale estimation is enabled
// (default: false).
func (c *Config) GetEstimateScale() bool {
	if c.EstimateScale == nil {
		return false
	}
	return *c.EstimateScale
}
