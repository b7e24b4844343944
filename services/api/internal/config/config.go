package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// Storage engine selectors.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// FileConfig represents configuration loaded from YAML with environment
// variable overrides.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	Storage        string   `yaml:"storage"`
	DatabaseURL    string   `yaml:"databaseURL"`
	TrustedProxies []string `yaml:"trustedProxies"`
	MaxBodyBytes   int64    `yaml:"maxBodyBytes"`

	// Login rate limiting. Redis makes the window distributed; without an
	// address the limiter runs in-process.
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	AuthRateLimit  int    `yaml:"authRateLimit"`
	AuthRateWindow string `yaml:"authRateWindow"`
}

// Load reads config from path (defaults to config.yaml). A missing default
// file is not an error: all settings can come from the environment.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{
		Port:           "8080",
		Storage:        StorageMemory,
		MaxBodyBytes:   50 * 1024 * 1024,
		AuthRateLimit:  20,
		AuthRateWindow: "1m",
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
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BIBLIOTECH_STORAGE"); v != "" {
		cfg.Storage = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if v := os.Getenv("API_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RateWindow parses the auth rate window duration.
func (c FileConfig) RateWindow() (time.Duration, error) {
	if strings.TrimSpace(c.AuthRateWindow) == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.AuthRateWindow)
	if err != nil {
		return 0, fmt.Errorf("parse authRateWindow: %w", err)
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	switch cfg.Storage {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for postgres storage (set in config.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown storage %q (expected %q or %q)", cfg.Storage, StorageMemory, StoragePostgres)
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
