// Package config holds the tuning knobs for the fused execution driver.
// It provides the built-in defaults and the infrastructure for overriding
// them from an optional fuse.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional override file looked up by Load
const ConfigFileName = "fuse.yaml"

// Defaults for the compiled driver fast path. A pipeline is folded into a
// single chained closure only when it has at least CompileSteps steps and
// its source reports a length hint of at least CompileSize elements;
// shorter pipelines iterate the step list directly.
const (
	DefaultCompileThresholdSteps = 10
	DefaultCompileThresholdSize  = 50_000_000
)

// Thresholds controls when the driver compiles a step list
type Thresholds struct {
	CompileSteps int `yaml:"compile_steps"`
	CompileSize  int `yaml:"compile_size"`
}

// Config represents the top-level fuse.yaml configuration
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Thresholds: Thresholds{
			CompileSteps: DefaultCompileThresholdSteps,
			CompileSize:  DefaultCompileThresholdSize,
		},
	}
}

// Load reads fuse.yaml from dir. A missing file yields the defaults; a file
// that cannot be parsed or carries non-positive thresholds is an error.
func Load(dir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Thresholds.CompileSteps <= 0 {
		return fmt.Errorf("thresholds.compile_steps must be positive, got %d", c.Thresholds.CompileSteps)
	}
	if c.Thresholds.CompileSize <= 0 {
		return fmt.Errorf("thresholds.compile_size must be positive, got %d", c.Thresholds.CompileSize)
	}
	return nil
}
