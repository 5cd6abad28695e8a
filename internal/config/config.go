package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/roof.report/internal/roof"
)

// DefaultConfigPath is the checked-in file carrying every tunable at its
// default value.
const DefaultConfigPath = "config/roof.defaults.json"

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Config holds measurement and pipeline tunables. Every field is optional;
// the Get* accessors fall back to the stock value when a field is nil, so
// partial files are safe.
type Config struct {
	// Calibration: mesh units to feet
	AreaFactor   *float64 `json:"area_factor,omitempty"`
	LengthFactor *float64 `json:"length_factor,omitempty"`

	// Pitch histogram
	PitchBins *int `json:"pitch_bins,omitempty"`
	PitchTopN *int `json:"pitch_top_n,omitempty"`

	// Plane segmentation (DBSCAN on face normals)
	SegmentEps    *float64 `json:"segment_eps,omitempty"`
	SegmentMinPts *int     `json:"segment_min_pts,omitempty"`

	// Feature classification, in feet
	FeatureBodyFraction    *float64 `json:"feature_body_fraction,omitempty"`
	ChimneyMinHeightFt     *float64 `json:"chimney_min_height_ft,omitempty"`
	ChimneyMaxFootprintFt  *float64 `json:"chimney_max_footprint_ft,omitempty"`
	VentMaxFootprintFt     *float64 `json:"vent_max_footprint_ft,omitempty"`
	VentMaxHeightFt        *float64 `json:"vent_max_height_ft,omitempty"`
	SkylightMinFootprintFt *float64 `json:"skylight_min_footprint_ft,omitempty"`
	SkylightMaxHeightFt    *float64 `json:"skylight_max_height_ft,omitempty"`

	// Synthetic rig
	RigRadius          *float64 `json:"rig_radius,omitempty"`
	RigBaseHeight      *float64 `json:"rig_base_height,omitempty"`
	RigHeightAmplitude *float64 `json:"rig_height_amplitude,omitempty"`
	DefaultFOVRad      *float64 `json:"default_fov_rad,omitempty"`

	// Pipeline
	MinImages         *int  `json:"min_images,omitempty"`
	MaxConcurrentJobs *int  `json:"max_concurrent_jobs,omitempty"`
	EstimateScale     *bool `json:"estimate_scale,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config { return &Config{} }

// Defaults returns a Config with every field set to its stock value.
func Defaults() *Config {
	c := Empty()
	return &Config{
		AreaFactor:             ptrFloat64(c.GetAreaFactor()),
		LengthFactor:           ptrFloat64(c.GetLengthFactor()),
		PitchBins:              ptrInt(c.GetPitchBins()),
		PitchTopN:              ptrInt(c.GetPitchTopN()),
		SegmentEps:             ptrFloat64(c.GetSegmentEps()),
		SegmentMinPts:          ptrInt(c.GetSegmentMinPts()),
		FeatureBodyFraction:    ptrFloat64(c.GetFeatureBodyFraction()),
		ChimneyMinHeightFt:     ptrFloat64(c.GetChimneyMinHeightFt()),
		ChimneyMaxFootprintFt:  ptrFloat64(c.GetChimneyMaxFootprintFt()),
		VentMaxFootprintFt:     ptrFloat64(c.GetVentMaxFootprintFt()),
		VentMaxHeightFt:        ptrFloat64(c.GetVentMaxHeightFt()),
		SkylightMinFootprintFt: ptrFloat64(c.GetSkylightMinFootprintFt()),
		SkylightMaxHeightFt:    ptrFloat64(c.GetSkylightMaxHeightFt()),
		RigRadius:              ptrFloat64(c.GetRigRadius()),
		RigBaseHeight:          ptrFloat64(c.GetRigBaseHeight()),
		RigHeightAmplitude:     ptrFloat64(c.GetRigHeightAmplitude()),
		DefaultFOVRad:          ptrFloat64(c.GetDefaultFOVRad()),
		MinImages:              ptrInt(c.GetMinImages()),
		MaxConcurrentJobs:      ptrInt(c.GetMaxConcurrentJobs()),
		EstimateScale:          ptrBool(c.GetEstimateScale()),
	}
}

// Load reads a Config from a JSON file. The path must end in .json and the
// file must be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the ranges of every field that is set.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"area_factor", c.AreaFactor},
		{"length_factor", c.LengthFactor},
		{"segment_eps", c.SegmentEps},
		{"chimney_min_height_ft", c.ChimneyMinHeightFt},
		{"chimney_max_footprint_ft", c.ChimneyMaxFootprintFt},
		{"vent_max_footprint_ft", c.VentMaxFootprintFt},
		{"vent_max_height_ft", c.VentMaxHeightFt},
		{"skylight_min_footprint_ft", c.SkylightMinFootprintFt},
		{"skylight_max_height_ft", c.SkylightMaxHeightFt},
		{"rig_radius", c.RigRadius},
	}
	for _, f := range positive {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", f.name, *f.v)
		}
	}

	atLeastOne := []struct {
		name string
		v    *int
	}{
		{"pitch_bins", c.PitchBins},
		{"pitch_top_n", c.PitchTopN},
		{"segment_min_pts", c.SegmentMinPts},
		{"max_concurrent_jobs", c.MaxConcurrentJobs},
	}
	for _, f := range atLeastOne {
		if f.v != nil && *f.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", f.name, *f.v)
		}
	}

	if c.MinImages != nil && *c.MinImages < roof.MinImages {
		return fmt.Errorf("min_images must be at least %d, got %d", roof.MinImages, *c.MinImages)
	}
	if c.FeatureBodyFraction != nil && (*c.FeatureBodyFraction <= 0 || *c.FeatureBodyFraction > 1) {
		return fmt.Errorf("feature_body_fraction must be in (0, 1], got %g", *c.FeatureBodyFraction)
	}
	if c.DefaultFOVRad != nil && (*c.DefaultFOVRad <= 0 || *c.DefaultFOVRad >= 3.14159) {
		return fmt.Errorf("default_fov_rad must be in (0, π), got %g", *c.DefaultFOVRad)
	}
	if c.RigHeightAmplitude != nil && *c.RigHeightAmplitude < 0 {
		return fmt.Errorf("rig_height_amplitude must be non-negative, got %g", *c.RigHeightAmplitude)
	}
	return nil
}
