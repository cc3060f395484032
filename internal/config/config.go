// Package config handles reading and writing .fleet/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .fleet/config.yaml.
type Config struct {
	Version  int            `yaml:"version"`
	API      APIConfig      `yaml:"api"`
	Polling  PollingConfig  `yaml:"polling"`
	Activity ActivityConfig `yaml:"activity"`
	Stream   StreamConfig   `yaml:"stream"`
	History  HistoryConfig  `yaml:"history"`
}

// APIConfig locates the skill service.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token,omitempty"`
	RequestTimeout int    `yaml:"request_timeout"` // ms
}

// PollingConfig controls the job poller.
type PollingConfig struct {
	JobInterval      int `yaml:"job_interval"`       // ms
	ReviewInterval   int `yaml:"review_interval"`    // ms, used right after a submission
	MaxFetchFailures int `yaml:"max_fetch_failures"` // 0 = never give up
}

// ActivityConfig controls the activity indicator.
type ActivityConfig struct {
	Threshold int `yaml:"threshold"` // ms
	Tick      int `yaml:"tick"`      // ms
}

// StreamConfig controls chat streaming.
type StreamConfig struct {
	Buffer int `yaml:"buffer"` // decoded events buffered per stream
}

// HistoryConfig controls the local conversation history.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxAgeDays int  `yaml:"max_age_days"`
}

// Environment overrides, applied after .env is loaded.
const (
	EnvAPIURL       = "FLEET_API_URL"
	EnvAPIToken     = "FLEET_API_TOKEN"
	EnvPollInterval = "FLEET_POLL_INTERVAL_MS"
)

const configDir = ".fleet"
const configFile = "config.yaml"

// Dir returns the state directory inside the project root.
func Dir(root string) string {
	return filepath.Join(root, configDir)
}

// ReadConfig reads .fleet/config.yaml from the given project directory.
// dir is the project root (not .fleet/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Load reads the project config, falling back to defaults when no config
// file exists, then applies .env and environment overrides and validates.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	// A missing .env is normal.
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the process environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvPollInterval, err)
		}
		c.Polling.JobInterval = ms
	}
	return nil
}

// Validate rejects configs the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("config: api.request_timeout must be positive, got %d", c.API.RequestTimeout)
	}
	if c.Polling.JobInterval <= 0 {
		return fmt.Errorf("config: polling.job_interval must be positive, got %d", c.Polling.JobInterval)
	}
	if c.Polling.ReviewInterval <= 0 {
		return fmt.Errorf("config: polling.review_interval must be positive, got %d", c.Polling.ReviewInterval)
	}
	if c.Polling.MaxFetchFailures < 0 {
		return fmt.Errorf("config: polling.max_fetch_failures must not be negative, got %d", c.Polling.MaxFetchFailures)
	}
	if c.Activity.Threshold <= 0 || c.Activity.Tick <= 0 {
		return errors.New("config: activity.threshold and activity.tick must be positive")
	}
	return nil
}

// RequestTimeout returns api.request_timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Millisecond
}

// JobInterval returns polling.job_interval as a duration.
func (c *Config) JobInterval() time.Duration {
	return time.Duration(c.Polling.JobInterval) * time.Millisecond
}

// ReviewInterval returns polling.review_interval as a duration.
func (c *Config) ReviewInterval() time.Duration {
	return time.Duration(c.Polling.ReviewInterval) * time.Millisecond
}

// ActivityThreshold returns activity.threshold as a duration.
func (c *Config) ActivityThreshold() time.Duration {
	return time.Duration(c.Activity.Threshold) * time.Millisecond
}

// ActivityTick returns activity.tick as a duration.
func (c *Config) ActivityTick() time.Duration {
	return time.Duration(c.Activity.Tick) * time.Millisecond
}

// WriteConfig writes cfg to .fleet/config.yaml in the given project directory.
// Creates the .fleet/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		API: APIConfig{
			BaseURL:        "http://localhost:8000/api/v1",
			RequestTimeout: 10000,
		},
		Polling: PollingConfig{
			JobInterval:      1500,
			ReviewInterval:   100,
			MaxFetchFailures: 10,
		},
		Activity: ActivityConfig{
			Threshold: 10000,
			Tick:      1000,
		},
		Stream: StreamConfig{
			Buffer: 64,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxAgeDays: 30,
		},
	}
}
