// Package config loads the settings lfsmount needs to open an image and
// serve it over FUSE: a YAML file, overridable by environment variables,
// mirroring the pack's layered config/envconfig pattern.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete lfsmount configuration surface.
type Config struct {
	ImagePath   string `yaml:"image_path" envconfig:"IMAGE_PATH"`
	MountPoint  string `yaml:"mount_point" envconfig:"MOUNT_POINT"`
	GCThreshold uint32 `yaml:"gc_threshold" envconfig:"GC_THRESHOLD"`
	LogLevel    string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
	FuseImpl    string `yaml:"fuse_impl" envconfig:"FUSE_IMPL"`
}

// NewDefault returns a Config with the defaults lfsmount falls back to
// when neither a config file nor an environment variable sets a field.
func NewDefault() *Config {
	return &Config{
		LogLevel:    "INFO",
		MetricsAddr: ":9090",
		FuseImpl:    "go-fuse",
	}
}

// LoadFromFile reads and unmarshals a YAML config file into c.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", filename, err)
	}
	return nil
}

// LoadFromEnv overlays LOGFS_-prefixed environment variables onto c.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("logfs", c); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}

// Validate checks that the config is complete enough to mount.
func (c *Config) Validate() error {
	if c.ImagePath == "" {
		return fmt.Errorf("config: image_path is required")
	}
	if c.MountPoint == "" {
		return fmt.Errorf("config: mount_point is required")
	}
	switch c.FuseImpl {
	case "go-fuse", "cgofuse":
	default:
		return fmt.Errorf("config: invalid fuse_impl: %s (must be go-fuse or cgofuse)", c.FuseImpl)
	}
	validLevels := map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid log_level: %s", c.LogLevel)
	}
	return nil
}
