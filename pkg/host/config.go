package host

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for a shmlog host process.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Store         StoreConfig         `yaml:"store"`
	ControlPlane  ControlPlaneConfig  `yaml:"control_plane"`
	Observability ObservabilityConfig `yaml:"observability"`
	Workers       WorkersConfig       `yaml:"workers"`
}

// ServiceConfig contains host metadata.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// StoreConfig locates the shared segment and sets the capture policy.
type StoreConfig struct {
	// Path is the segment file; /dev/shm keeps it memory-resident.
	Path string `yaml:"path"`

	// Threshold is the minimum severity captured, in slog notation
	// ("error", "warn", "error-1", ...).
	Threshold string `yaml:"threshold"`

	// UnlinkOnShutdown removes the segment files when the host stops.
	UnlinkOnShutdown bool `yaml:"unlink_on_shutdown"`
}

// ControlPlaneConfig contains control plane settings.
type ControlPlaneConfig struct {
	Port int `yaml:"port"`
}

// WorkersConfig describes the worker processes the host spawns.
type WorkersConfig struct {
	// Count of identical workers; 0 disables spawning.
	Count int `yaml:"count"`

	// Command and Args launch one worker. The segment path is appended
	// as "-segment <path>" automatically.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a config with every default applied, for hosts
// running without a config file.
func DefaultConfig(name, version string) *Config {
	config := &Config{
		Service: ServiceConfig{Name: name, Version: version},
	}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "shmlog"
	}
	if c.Service.Version == "" {
		c.Service.Version = "0.1.0"
	}
	if c.Store.Path == "" {
		c.Store.Path = "/dev/shm/shmlog.ring"
	}
	if c.Store.Threshold == "" {
		c.Store.Threshold = "error"
	}
	if c.ControlPlane.Port == 0 {
		c.ControlPlane.Port = 9090
	}
}

// ThresholdLevel parses the configured capture threshold.
func (c *StoreConfig) ThresholdLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Threshold)); err != nil {
		return 0, fmt.Errorf("invalid capture threshold %q: %w", c.Threshold, err)
	}
	return level, nil
}
