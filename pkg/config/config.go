// Package config provides configuration loading and management for patchlabel.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"patchlabel/pkg/labels"
)

// SourceLabels overrides the labels section for one source
type SourceLabels struct {
	// Strategy is one of presence, threshold or index
	Strategy string `yaml:"strategy"`

	// ThresholdPixels, if set, replaces labels.thresholdPixels for this source
	ThresholdPixels *int `yaml:"thresholdPixels,omitempty"`
}

// SourceConfig is one image directory, its optional mask directory and
// optional labeling override
type SourceConfig struct {
	Dir     string        `yaml:"dir"`
	MaskDir string        `yaml:"maskDir,omitempty"`
	Labels  *SourceLabels `yaml:"labels,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Tiling parameters
	Tiling struct {
		// PatchSize is the side of the square patches, in pixels
		PatchSize int `yaml:"patchSize"`

		// Stride is the distance between consecutive patch corners
		Stride int `yaml:"stride"`
	} `yaml:"tiling"`

	// Label derivation parameters
	Labels struct {
		// Strategy is one of presence, threshold or index
		Strategy string `yaml:"strategy"`

		// ThresholdPixels is the count a class must exceed under the threshold strategy
		ThresholdPixels int `yaml:"thresholdPixels"`

		// Index is the sidecar label file used by the index strategy
		Index string `yaml:"index"`
	} `yaml:"labels"`

	// Dataset parameters
	Dataset struct {
		Sources []SourceConfig `yaml:"sources,omitempty"`

		// Grayscale decodes images with a single channel
		Grayscale bool `yaml:"grayscale"`

		// Resize, when positive, scales every patch to Resize x Resize
		Resize int `yaml:"resize"`
	} `yaml:"dataset"`

	// Output parameters
	Output struct {
		Dir string `yaml:"dir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tiling.PatchSize = 56
	cfg.Tiling.Stride = 28

	cfg.Labels.Strategy = labels.Presence.String()
	cfg.Labels.ThresholdPixels = labels.DefaultThresholdPixels
	cfg.Labels.Index = "labels.yaml"

	cfg.Dataset.Grayscale = false
	cfg.Dataset.Resize = 0

	cfg.Output.Dir = "patches"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks value ranges that can be checked without touching the file system
func (c *Config) Validate() error {
	if c.Tiling.PatchSize <= 0 {
		return errors.Errorf("tiling.patchSize must be positive, got %d", c.Tiling.PatchSize)
	}
	if c.Tiling.Stride <= 0 {
		return errors.Errorf("tiling.stride must be positive, got %d", c.Tiling.Stride)
	}
	if _, err := labels.ParseStrategy(c.Labels.Strategy); err != nil {
		return errors.WithMessage(err, "labels.strategy")
	}
	if c.Labels.ThresholdPixels < 0 {
		return errors.Errorf("labels.thresholdPixels must be non-negative, got %d", c.Labels.ThresholdPixels)
	}
	for i, src := range c.Dataset.Sources {
		if src.Labels == nil {
			continue
		}
		if _, err := labels.ParseStrategy(src.Labels.Strategy); err != nil {
			return errors.WithMessagef(err, "dataset.sources[%d].labels.strategy", i)
		}
		if p := src.Labels.ThresholdPixels; p != nil && *p < 0 {
			return errors.Errorf("dataset.sources[%d].labels.thresholdPixels must be non-negative, got %d", i, *p)
		}
	}
	if c.Dataset.Resize < 0 {
		return errors.Errorf("dataset.resize must be non-negative, got %d", c.Dataset.Resize)
	}
	return nil
}

// SourceThreshold returns the threshold in effect for source i
func (c *Config) SourceThreshold(i int) int {
	if l := c.Dataset.Sources[i].Labels; l != nil && l.ThresholdPixels != nil {
		return *l.ThresholdPixels
	}
	return c.Labels.ThresholdPixels
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid config %q", configPath)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
