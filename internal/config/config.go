// Package config loads run configuration for precipitate-meter from YAML and
// turns it into calibration and run parameters.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"precipitate-meter/internal/calibration"
	"precipitate-meter/internal/logger"
	"precipitate-meter/internal/models"

	"gopkg.in/yaml.v3"
)

// Config represents the run configuration loaded from YAML
type Config struct {
	// Mode is "cross-section" or "length"
	Mode string `yaml:"mode"`

	// Threshold overrides the mode's default binarization cutoff when set
	Threshold *float64 `yaml:"threshold,omitempty"`

	// ErosionIterations overrides the mode's default erosion count when set
	ErosionIterations *int `yaml:"erosionIterations,omitempty"`

	Calibration struct {
		// NmPerPx is the distance per pixel at native resolution. Zero defers
		// to the value embedded in the manifest.
		NmPerPx float64 `yaml:"nmPerPx"`

		// NativeSize is the square size of the source micrographs. Zero
		// defers to the manifest, then to WorkingSize.
		NativeSize int `yaml:"nativeSize"`

		// WorkingSize is the square size detections are produced at
		WorkingSize int `yaml:"workingSize"`
	} `yaml:"calibration"`

	Processing struct {
		// Workers bounds how many images are processed concurrently
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	Log struct {
		// Level is one of debug, info, warning, error
		Level string `yaml:"level"`
	} `yaml:"log"`

	Input struct {
		// Manifest lists per-image detections produced by the segmentation model
		Manifest string `yaml:"manifest"`
	} `yaml:"input"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Mode = models.ModeCrossSection.String()
	cfg.Calibration.WorkingSize = calibration.DefaultWorkingSize
	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Log.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration
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

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks every field that does not depend on the manifest.
func (c *Config) Validate() error {
	if _, err := models.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Threshold != nil {
		t := *c.Threshold
		if math.IsNaN(t) || t < models.ThresholdRange.Min || t > models.ThresholdRange.Max {
			return models.NewConfigurationError("threshold", t, "must be within [0,1]")
		}
	}
	if c.ErosionIterations != nil && *c.ErosionIterations < 0 {
		return models.NewConfigurationError("erosionIterations", *c.ErosionIterations, "must not be negative")
	}
	if c.Calibration.NmPerPx < 0 {
		return models.NewConfigurationError("calibration.nmPerPx", c.Calibration.NmPerPx, "must not be negative")
	}
	if c.Calibration.NativeSize < 0 {
		return models.NewConfigurationError("calibration.nativeSize", c.Calibration.NativeSize, "must not be negative")
	}
	if c.Calibration.WorkingSize <= 0 {
		return models.NewConfigurationError("calibration.workingSize", c.Calibration.WorkingSize, "must be positive")
	}
	if c.Processing.Workers < 0 {
		return models.NewConfigurationError("processing.workers", c.Processing.Workers, "must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return models.NewConfigurationError("log.level", c.Log.Level, err.Error())
	}
	return nil
}

// ParsedMode returns the configured measurement mode.
func (c *Config) ParsedMode() (models.Mode, error) {
	return models.ParseMode(c.Mode)
}

// CalibrationUnit builds the working-resolution calibration. Values set in the
// configuration win over those embedded in the manifest.
func (c *Config) CalibrationUnit(embeddedNmPerPx float64, embeddedNativeSize int) (*calibration.Unit, error) {
	nm := c.Calibration.NmPerPx
	if nm == 0 {
		nm = embeddedNmPerPx
	}
	if nm == 0 {
		return nil, models.NewConfigurationError("calibration.nmPerPx", nm, "no calibration in configuration or manifest")
	}

	nativeSize := c.Calibration.NativeSize
	if nativeSize == 0 {
		nativeSize = embeddedNativeSize
	}
	if nativeSize == 0 {
		nativeSize = c.Calibration.WorkingSize
	}

	return calibration.New(nm, nativeSize, c.Calibration.WorkingSize)
}

// RunParameters seeds parameters with the mode's defaults and applies any
// threshold or erosion override.
func (c *Config) RunParameters(unit *calibration.Unit) (*models.RunParameters, error) {
	mode, err := c.ParsedMode()
	if err != nil {
		return nil, err
	}

	params, err := models.NewRunParameters(mode, unit.NmPerPx())
	if err != nil {
		return nil, err
	}
	if c.Threshold != nil {
		if err := params.SetThreshold(*c.Threshold); err != nil {
			return nil, err
		}
	}
	if c.ErosionIterations != nil {
		if err := params.SetErosionIterations(*c.ErosionIterations); err != nil {
			return nil, err
		}
	}
	return params, nil
}
