// Package config holds the daemon configuration loaded from
// ~/.sessiond/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MainImage is the coding-session runtime image used when no image is
// configured. It provides a multi-language development environment with the
// Claude CLI pre-installed.
const MainImage = "ghcr.io/coderelay/session-runtime:main"

// Config holds daemon settings from ~/.sessiond/config.yaml.
type Config struct {
	Container ContainerConfig `yaml:"container"`
	Debug     DebugConfig     `yaml:"debug"`
}

// ContainerConfig holds coding-session container settings.
type ContainerConfig struct {
	// Image is the container image for coding sessions.
	Image string `yaml:"image"`
	// WorkDir is the working directory inside the container.
	WorkDir string `yaml:"workdir"`
	// CPUs limits the number of CPUs a session may use (0 = unlimited).
	CPUs int `yaml:"cpus"`
	// MemoryMB limits session memory in megabytes (0 = unlimited).
	MemoryMB int `yaml:"memory_mb"`
	// ReadyProbe is the command whose success marks the container usable.
	ReadyProbe []string `yaml:"ready_probe"`
	// ReadyTimeout bounds the readiness wait after start.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	// ReadyInterval is the poll interval for the readiness probe.
	ReadyInterval time.Duration `yaml:"ready_interval"`
	// ExecTimeout bounds a single command execution inside the container.
	ExecTimeout time.Duration `yaml:"exec_timeout"`
}

// UnmarshalYAML decodes durations from strings like "30s"; yaml has no
// native duration type.
func (c *ContainerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Image         string   `yaml:"image"`
		WorkDir       string   `yaml:"workdir"`
		CPUs          int      `yaml:"cpus"`
		MemoryMB      int      `yaml:"memory_mb"`
		ReadyProbe    []string `yaml:"ready_probe"`
		ReadyTimeout  string   `yaml:"ready_timeout"`
		ReadyInterval string   `yaml:"ready_interval"`
		ExecTimeout   string   `yaml:"exec_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Image != "" {
		c.Image = raw.Image
	}
	if raw.WorkDir != "" {
		c.WorkDir = raw.WorkDir
	}
	if raw.CPUs != 0 {
		c.CPUs = raw.CPUs
	}
	if raw.MemoryMB != 0 {
		c.MemoryMB = raw.MemoryMB
	}
	if len(raw.ReadyProbe) > 0 {
		c.ReadyProbe = raw.ReadyProbe
	}
	for _, f := range []struct {
		raw  string
		dest *time.Duration
	}{
		{raw.ReadyTimeout, &c.ReadyTimeout},
		{raw.ReadyInterval, &c.ReadyInterval},
		{raw.ExecTimeout, &c.ExecTimeout},
	} {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", f.raw, err)
		}
		*f.dest = d
	}
	return nil
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Container: ContainerConfig{
			Image:         MainImage,
			WorkDir:       "/workspace",
			ReadyProbe:    []string{"echo", "ready"},
			ReadyTimeout:  30 * time.Second,
			ReadyInterval: time.Second,
			ExecTimeout:   2 * time.Minute,
		},
		Debug: DebugConfig{
			RetentionDays: 7,
		},
	}
}

// Load reads ~/.sessiond/config.yaml and applies environment overrides.
// A missing or malformed file falls back to defaults.
func Load() (*Config, error) {
	cfg := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".sessiond", "config.yaml")
		if data, err := os.ReadFile(configPath); err == nil {
			_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
		}
	}
	applyEnv(cfg)

	return cfg, nil
}

// applyEnv applies SESSIOND_* environment overrides.
func applyEnv(cfg *Config) {
	if image := os.Getenv("SESSIOND_IMAGE"); image != "" {
		cfg.Container.Image = image
	}
	if workdir := os.Getenv("SESSIOND_WORKDIR"); workdir != "" {
		cfg.Container.WorkDir = workdir
	}
	if v := os.Getenv("SESSIOND_CPUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Container.CPUs = n
		}
	}
	if v := os.Getenv("SESSIOND_MEMORY_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Container.MemoryMB = n
		}
	}
	if v := os.Getenv("SESSIOND_READY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Container.ReadyTimeout = d
		}
	}
}

// Dir returns the path to ~/.sessiond.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".sessiond")
	}
	return filepath.Join(homeDir, ".sessiond")
}
