// Package config manages shmlogctl configuration
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the shmlogctl configuration
type Config struct {
	Segment SegmentConfig `mapstructure:"segment"`
	Host    HostConfig    `mapstructure:"host"`
}

// SegmentConfig locates the shared segment
type SegmentConfig struct {
	Path string `mapstructure:"path"`
}

// HostConfig holds the host control plane endpoint
type HostConfig struct {
	Address string `mapstructure:"address"`
	Timeout int    `mapstructure:"timeout"`
}

// Load loads configuration from file or defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.shmlog")
	v.AddConfigPath(".")

	// Environment variable overrides
	v.SetEnvPrefix("SHMLOG")
	v.AutomaticEnv()

	// Set defaults for local development
	v.SetDefault("segment.path", "/dev/shm/shmlog.ring")
	v.SetDefault("host.address", "localhost:9090")
	v.SetDefault("host.timeout", 10)

	// Read config file (ignore if not found - use defaults)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
