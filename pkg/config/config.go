// Package config provides configuration loading and management for adisub.
// It handles loading configuration from YAML files, provides default values
// and validates every section before a pipeline run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Algorithm kinds accepted by the CLI.
const (
	AlgorithmPCA     = "pca"
	AlgorithmNMF     = "nmf"
	AlgorithmClassic = "classic"
	AlgorithmGreeDS  = "greeds"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	Algorithm  AlgorithmConfig  `yaml:"algorithm"`
	Selection  SelectionConfig  `yaml:"selection"`
	Geometry   GeometryConfig   `yaml:"geometry"`
	Processing ProcessingConfig `yaml:"processing"`
}

// AlgorithmConfig selects and parameterizes the speckle-model algorithm.
type AlgorithmConfig struct {
	// Kind is one of pca, nmf, classic or greeds.
	Kind string `yaml:"kind"`

	// Rank is the truncation target for linear kinds. With an automatic
	// rank policy it acts as an upper bound; zero leaves the bound open.
	Rank int `yaml:"rank"`

	// RankPolicy is fixed, variance-ratio or noise-decay (pca only).
	RankPolicy string `yaml:"rankPolicy"`

	// VarianceTarget is the cumulative variance ratio for variance-ratio.
	VarianceTarget float64 `yaml:"varianceTarget"`

	// NoiseTolerance is the improvement floor for noise-decay.
	NoiseTolerance float64 `yaml:"noiseTolerance"`

	// NMFIterations bounds the factorization updates for nmf.
	NMFIterations int `yaml:"nmfIterations"`

	// Statistic is median or mean, for classic.
	Statistic string `yaml:"statistic"`

	// ClipFloor is the synthetic-cube clip floor for greeds.
	ClipFloor float64 `yaml:"clipFloor"`
}

// Validate validates the algorithm section.
func (c *AlgorithmConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required,
			validation.In(AlgorithmPCA, AlgorithmNMF, AlgorithmClassic, AlgorithmGreeDS)),
		validation.Field(&c.Rank, validation.Min(0)),
		validation.Field(&c.RankPolicy,
			validation.In("fixed", "variance-ratio", "noise-decay")),
		validation.Field(&c.VarianceTarget, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.NoiseTolerance, validation.Min(0.0)),
		validation.Field(&c.NMFIterations, validation.Min(0)),
		validation.Field(&c.Statistic, validation.In("median", "mean")),
	)
}

// SelectionConfig parameterizes the reference-selection policy used by the
// frame-wise and local-combination modes.
type SelectionConfig struct {
	// Fwhm is the resolution element size in pixels.
	Fwhm float64 `yaml:"fwhm"`

	// DeltaRot is the required rotation in FWHM units.
	DeltaRot float64 `yaml:"deltaRot"`

	// Limit caps the reference set per target frame (0 = unlimited).
	Limit int `yaml:"limit"`

	// DistanceMetric is euclidean, manhattan or correlation.
	DistanceMetric string `yaml:"distanceMetric"`

	// DistancePercentile prunes references beyond this percentile of
	// pairwise distance; 0 disables pruning.
	DistancePercentile float64 `yaml:"distancePercentile"`
}

// Validate validates the selection section.
func (c *SelectionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Fwhm, validation.Min(0.0)),
		validation.Field(&c.DeltaRot, validation.Min(0.0)),
		validation.Field(&c.Limit, validation.Min(0)),
		validation.Field(&c.DistanceMetric,
			validation.In("euclidean", "manhattan", "correlation")),
		validation.Field(&c.DistancePercentile, validation.Min(0.0), validation.Max(100.0)),
	)
}

// GeometryConfig selects the pixel geometry of the reduction.
type GeometryConfig struct {
	// Kind is full, annulus or multi-annulus.
	Kind string `yaml:"kind"`

	// InnerRadius and OuterRadius bound the single annulus, in pixels.
	InnerRadius float64 `yaml:"innerRadius"`
	OuterRadius float64 `yaml:"outerRadius"`

	// Width and Radii lay out the multi-annulus rings. Radii is omitted when
	// empty so a nil slice round-trips through yaml as nil.
	Width float64   `yaml:"width"`
	Radii []float64 `yaml:"radii,omitempty"`
}

// Validate validates the geometry section.
func (c *GeometryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required,
			validation.In("full", "annulus", "multi-annulus")),
		validation.Field(&c.InnerRadius, validation.Min(0.0)),
		validation.Field(&c.Width, validation.Min(0.0)),
	); err != nil {
		return err
	}
	switch c.Kind {
	case "annulus":
		if c.OuterRadius <= c.InnerRadius {
			return fmt.Errorf("config: annulus outerRadius %g must exceed innerRadius %g", c.OuterRadius, c.InnerRadius)
		}
	case "multi-annulus":
		if c.Width <= 0 || len(c.Radii) == 0 {
			return fmt.Errorf("config: multi-annulus geometry requires width and radii")
		}
	}
	return nil
}

// ProcessingConfig holds run-wide execution parameters.
type ProcessingConfig struct {
	// Mode is full, framewise or local.
	Mode string `yaml:"mode"`

	// Workers bounds fan-out parallelism.
	Workers int `yaml:"workers"`

	// Collapse is median, mean, sum or weighted.
	Collapse string `yaml:"collapse"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Validate validates the processing section.
func (c *ProcessingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required,
			validation.In("full", "framewise", "local")),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.Collapse,
			validation.In("median", "mean", "sum", "weighted")),
	)
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	if err := c.Algorithm.Validate(); err != nil {
		return err
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	return c.Processing.Validate()
}

// DefaultConfig returns a configuration with default values: a rank-10
// full-frame PCA reduction with median collapse.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Algorithm.Kind = AlgorithmPCA
	cfg.Algorithm.Rank = 10
	cfg.Algorithm.RankPolicy = "fixed"
	cfg.Algorithm.VarianceTarget = 0.95
	cfg.Algorithm.NoiseTolerance = 1e-3
	cfg.Algorithm.NMFIterations = 200
	cfg.Algorithm.Statistic = "median"

	cfg.Selection.Fwhm = 4.0
	cfg.Selection.DeltaRot = 1.0
	cfg.Selection.DistanceMetric = "euclidean"

	cfg.Geometry.Kind = "full"

	cfg.Processing.Mode = "full"
	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Collapse = "median"
	cfg.Processing.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
