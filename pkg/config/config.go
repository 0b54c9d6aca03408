// Package config provides configuration loading and management for niftiverify.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"niftiverify/pkg/nifti"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Fixture generation parameters
	Generate struct {
		// Seed makes fixture contents reproducible
		Seed uint64 `yaml:"seed"`

		// Shape is the dimension list of every fixture
		Shape []int `yaml:"shape"`

		// Kinds lists the element kinds to generate; empty means all
		Kinds []nifti.ElementKind `yaml:"kinds"`

		// OutputDir is where generated .nii files are written
		OutputDir string `yaml:"outputDir"`
	} `yaml:"generate"`

	// Batch round-trip parameters
	Batch struct {
		// Workers bounds how many files are processed concurrently
		Workers int `yaml:"workers"`

		// InputDir is scanned for .nii files
		InputDir string `yaml:"inputDir"`

		// OutputDir receives the re-encoded copies
		OutputDir string `yaml:"outputDir"`
	} `yaml:"batch"`

	// HTTP server parameters
	Server struct {
		// Address is the listen address
		Address string `yaml:"address"`

		// ReadTimeout bounds how long reading request headers may take
		ReadTimeout time.Duration `yaml:"readTimeout"`

		// MaxBodyBytes caps uploaded volumes
		MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	} `yaml:"server"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Format is text or json
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// The fixture set mirrors the 25x25x25 volumes of the reference generator
	cfg.Generate.Seed = 1
	cfg.Generate.Shape = []int{25, 25, 25}
	cfg.Generate.OutputDir = "test_images"

	cfg.Batch.Workers = runtime.NumCPU()
	cfg.Batch.InputDir = "test_images"
	cfg.Batch.OutputDir = "test_output"

	cfg.Server.Address = "127.0.0.1:8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.MaxBodyBytes = 256 << 20

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// Validate checks the values that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers))
	}
	if len(c.Generate.Shape) == 0 || len(c.Generate.Shape) > nifti.MaxDims {
		errs = append(errs, fmt.Errorf("generate.shape must have 1 to %d dimensions, got %d", nifti.MaxDims, len(c.Generate.Shape)))
	}
	for i, n := range c.Generate.Shape {
		if n < 1 || n > nifti.MaxDimSize {
			errs = append(errs, fmt.Errorf("generate.shape[%d] must be between 1 and %d, got %d", i, nifti.MaxDimSize, n))
		}
	}
	if c.Server.MaxBodyBytes < nifti.HeaderSize {
		errs = append(errs, fmt.Errorf("server.maxBodyBytes must be at least %d, got %d", nifti.HeaderSize, c.Server.MaxBodyBytes))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
