package storage

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
)

// Config contains blob storage configuration.
type Config struct {
	// BasePath is the root directory for filesystem storage.
	// Default: ".data/packages"
	BasePath string `toml:"base_path"`

	// MaxArtifactSize bounds a single built artifact, expressed as a
	// human-readable size ("100MB").
	MaxArtifactSize    string `toml:"max_artifact_size"`
	maxArtifactSizeVal int64
}

// Env maps environment variable names for storage configuration.
type Env struct {
	BasePath        string
	MaxArtifactSize string
}

// MaxArtifactSizeBytes returns the parsed artifact size limit in bytes.
func (c *Config) MaxArtifactSizeBytes() int64 {
	return c.maxArtifactSizeVal
}

// Finalize applies defaults, loads environment overrides, and validates the storage configuration.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *Config) Merge(overlay *Config) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}

	if size, err := units.FromHumanSize(overlay.MaxArtifactSize); err == nil {
		c.MaxArtifactSize = overlay.MaxArtifactSize
		c.maxArtifactSizeVal = size
	}
}

func (c *Config) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = ".data/packages"
	}
	if c.MaxArtifactSize == "" {
		c.MaxArtifactSize = "100MB"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BasePath != "" {
		if v := os.Getenv(env.BasePath); v != "" {
			c.BasePath = v
		}
	}
	if env.MaxArtifactSize != "" {
		if v := os.Getenv(env.MaxArtifactSize); v != "" {
			c.MaxArtifactSize = v
		}
	}
}

func (c *Config) validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base_path required")
	}

	size, err := units.FromHumanSize(c.MaxArtifactSize)
	if err != nil {
		return fmt.Errorf("invalid max_artifact_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_artifact_size must be positive")
	}
	c.maxArtifactSizeVal = size

	return nil
}
