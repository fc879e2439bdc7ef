// Package config handles pipeline configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// Configuration errors.
var (
	ErrOutOfRange   = errors.New("value out of range")
	ErrInvalidValue = errors.New("invalid value")
)

// Resolutions lists the supported square bake image sizes in pixels.
var Resolutions = []int{256, 512, 1024, 2048, 4096, 8192}

// Input bounds for the numeric pipeline settings.
const (
	MinRemeshPercent = 1
	MaxRemeshPercent = 100
	MinSamples       = 5
	MaxSamples       = 50
	MinCageDistance  = 0.0
	MaxCageDistance  = 1.0
)

// DefaultImageDir is the folder created next to the working file when no
// explicit image path is set.
const DefaultImageDir = "Autolow"

// Config holds all settings.
type Config struct {
	Pipeline Pipeline      `yaml:"pipeline"`
	Logging  LoggingConfig `yaml:"logging"`
}

// Pipeline is the per-run snapshot of every strategy selection and numeric
// parameter. Components receive it by value and never mutate it.
type Pipeline struct {
	Remesher      Remesher `yaml:"remesher"`
	RemeshPercent int      `yaml:"remesh_percent"` // 1-100, lower gives fewer polygons
	Samples       int      `yaml:"samples"`        // 5-50 edges sampled for the voxel size

	UnwrapMethod UnwrapMethod `yaml:"unwrap_method"`

	BakeMethod   BakeMethod `yaml:"bake_method"`
	CageSettings CageMode   `yaml:"cage_settings"`
	Extrusion    float64    `yaml:"extrusion"`    // manual cage only
	RayDistance  float64    `yaml:"ray_distance"` // manual cage only
	Resolution   int        `yaml:"resolution"`

	NormalBake  bool `yaml:"is_normal_bake_on"`
	DiffuseBake bool `yaml:"is_diffuse_bake_on"`

	SaveImages        bool        `yaml:"is_image_saved"`
	ImagePath         string      `yaml:"image_path"` // empty means DefaultImageDir next to the working file
	ImageFormat       ImageFormat `yaml:"image_format"`
	QualifyImageNames bool        `yaml:"qualify_image_names"`

	Autosave      bool `yaml:"autosave"`
	AutosaveAfter bool `yaml:"autosave_after"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Pipeline: DefaultPipeline(),
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// DefaultPipeline returns the pipeline settings a fresh session starts with.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Remesher:      RemesherVoxel,
		RemeshPercent: 15,
		Samples:       10,
		UnwrapMethod:  UnwrapSmartProject,
		BakeMethod:    BakeTransfer,
		CageSettings:  CageAuto,
		Resolution:    1024,
		NormalBake:    true,
		DiffuseBake:   true,
		SaveImages:    true,
		ImageFormat:   FormatPNG,
	}
}

// Validate checks the input-time bounds of every numeric setting.
func (p Pipeline) Validate() error {
	if p.RemeshPercent < MinRemeshPercent || p.RemeshPercent > MaxRemeshPercent {
		return fmt.Errorf("%w: remesh_percent %d not in [%d,%d]",
			ErrOutOfRange, p.RemeshPercent, MinRemeshPercent, MaxRemeshPercent)
	}
	if p.Samples < MinSamples || p.Samples > MaxSamples {
		return fmt.Errorf("%w: samples %d not in [%d,%d]", ErrOutOfRange, p.Samples, MinSamples, MaxSamples)
	}
	if p.Extrusion < MinCageDistance || p.Extrusion > MaxCageDistance {
		return fmt.Errorf("%w: extrusion %g not in [0,1]", ErrOutOfRange, p.Extrusion)
	}
	if p.RayDistance < MinCageDistance || p.RayDistance > MaxCageDistance {
		return fmt.Errorf("%w: ray_distance %g not in [0,1]", ErrOutOfRange, p.RayDistance)
	}
	if !slices.Contains(Resolutions, p.Resolution) {
		return fmt.Errorf("%w: resolution %d not one of %v", ErrInvalidValue, p.Resolution, Resolutions)
	}
	if _, ok := remesherNames[p.Remesher]; !ok {
		return fmt.Errorf("%w: remesher %d", ErrInvalidValue, int(p.Remesher))
	}
	if _, ok := unwrapNames[p.UnwrapMethod]; !ok {
		return fmt.Errorf("%w: unwrap method %d", ErrInvalidValue, int(p.UnwrapMethod))
	}
	if _, ok := bakeNames[p.BakeMethod]; !ok {
		return fmt.Errorf("%w: bake method %d", ErrInvalidValue, int(p.BakeMethod))
	}
	if _, ok := cageNames[p.CageSettings]; !ok {
		return fmt.Errorf("%w: cage mode %d", ErrInvalidValue, int(p.CageSettings))
	}
	if _, ok := formatNames[p.ImageFormat]; !ok {
		return fmt.Errorf("%w: image format %d", ErrInvalidValue, int(p.ImageFormat))
	}
	return nil
}

// Remeshes reports whether the configured remesher changes topology.
func (p Pipeline) Remeshes() bool {
	return p.Remesher != RemesherNone
}

// Bakes reports whether any map will be baked.
func (p Pipeline) Bakes() bool {
	return p.BakeMethod != BakeNone && (p.NormalBake || p.DiffuseBake)
}

// ApplyWorkflow bulk-sets the remesher, unwrap and bake fields to a known-good
// combination. The full workflow keeps an already chosen remesher.
func (p *Pipeline) ApplyWorkflow(w Workflow) error {
	switch w {
	case WorkflowFull:
		if p.Remesher == RemesherNone {
			p.Remesher = RemesherVoxel
		}
		p.UnwrapMethod = UnwrapSmartProject
		p.BakeMethod = BakeTransfer
	case WorkflowTransferBake:
		p.Remesher = RemesherNone
		p.UnwrapMethod = UnwrapSmartProject
		p.BakeMethod = BakeTransfer
	case WorkflowActiveBake:
		p.Remesher = RemesherNone
		p.UnwrapMethod = UnwrapSmartProject
		p.BakeMethod = BakeActive
	case WorkflowNone:
		p.Remesher = RemesherNone
		p.UnwrapMethod = UnwrapNone
		p.BakeMethod = BakeNone
	default:
		return fmt.Errorf("%w: workflow %d", ErrInvalidValue, int(w))
	}
	return nil
}
