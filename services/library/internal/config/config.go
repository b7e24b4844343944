package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "library.yaml"

// FileConfig represents configuration loaded from YAML with environment
// variable overrides.
type FileConfig struct {
	APIBaseURL     string `yaml:"apiBaseURL"`
	LogLevel       string `yaml:"logLevel"`
	HealthInterval string `yaml:"healthInterval"`
	HealthTimeout  string `yaml:"healthTimeout"`
}

// Load reads config from path (defaults to library.yaml). A missing
// default file is not an error: all settings can come from the
// environment.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{
		APIBaseURL:     "http://localhost:8080",
		HealthInterval: "30s",
		HealthTimeout:  "5s",
	}
	usingDefault := path == ""
	if usingDefault {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err) && usingDefault:
		// env-only configuration
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	// Override with environment variables
	if v := os.Getenv("BIBLIOTECH_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HEALTH_INTERVAL"); v != "" {
		cfg.HealthInterval = v
	}
	if v := os.Getenv("HEALTH_TIMEOUT"); v != "" {
		cfg.HealthTimeout = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Interval parses the health probe cadence.
func (c FileConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.HealthInterval)
	if err != nil {
		return 0, fmt.Errorf("parse healthInterval: %w", err)
	}
	return d, nil
}

// Timeout parses the per-probe timeout.
func (c FileConfig) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.HealthTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse healthTimeout: %w", err)
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.APIBaseURL == "" {
		return errors.New("config: apiBaseURL is required")
	}
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: apiBaseURL %q is not an absolute URL", cfg.APIBaseURL)
	}
	return nil
}
