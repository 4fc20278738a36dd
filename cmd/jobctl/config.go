package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of jobctl. Zero values defer to
// the library defaults.
type Config struct {
	Backend      string `yaml:"backend"`
	Device       string `yaml:"device"`
	CgroupPrefix string `yaml:"cgroup_prefix"`
	Slack        int    `yaml:"slack"`
	LogLevel     string `yaml:"log_level"`
}

// loadConfig reads path, or returns an empty config when no file was
// requested.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{LogLevel: "warn"}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

// applyFlags lets command line flags override the file.
func (c *Config) applyFlags(backend, device, prefix, logLevel string) {
	if backend != "" {
		c.Backend = backend
	}
	if device != "" {
		c.Device = device
	}
	if prefix != "" {
		c.CgroupPrefix = prefix
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}
