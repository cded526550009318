// Package config handles configuration loading for fxstream.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"  yaml:"upstream"`
	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// APIConfig holds HTTP/websocket server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// UpstreamConfig holds rate provider settings.
type UpstreamConfig struct {
	Provider   string `mapstructure:"provider"    yaml:"provider"`    // e.g. "frankfurter"
	BaseURL    string `mapstructure:"base_url"    yaml:"base_url"`    // empty = provider default
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"` // per-request bound
}

// BroadcastConfig holds the rate fan-out scheduler settings.
type BroadcastConfig struct {
	IntervalSec     int `mapstructure:"interval_sec"      yaml:"interval_sec"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	MaxConcurrent   int `mapstructure:"max_concurrent"    yaml:"max_concurrent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Interval returns the broadcast period as a duration.
func (c BroadcastConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// FetchTimeout returns the per-pair fetch bound as a duration.
func (c BroadcastConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Timeout returns the upstream request bound as a duration.
func (c UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fxstream/config.yaml (home directory)
//  3. /etc/fxstream/config.yaml (system)
//
// Environment variables override config file values.
// Format: FXSTREAM_<SECTION>_<KEY>, e.g., FXSTREAM_API_PORT
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fxstream"))
	v.AddConfigPath("/etc/fxstream")

	v.SetEnvPrefix("FXSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FXSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("upstream.provider", "frankfurter")
	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.timeout_sec", 10)

	// Reference behavior: refresh subscribed pairs every 60 seconds.
	v.SetDefault("broadcast.interval_sec", 60)
	v.SetDefault("broadcast.fetch_timeout_sec", 10)
	v.SetDefault("broadcast.max_concurrent", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
