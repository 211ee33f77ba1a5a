// Package config loads the server configuration from config/fritter.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the fritter server.
type Config struct {
	ListenAddr  string        `yaml:"listen_addr"`
	DatabaseURL string        `yaml:"database_url"`
	LogLevel    string        `yaml:"log_level"`
	SessionTTL  time.Duration `yaml:"session_ttl"`

	RateLimit struct {
		RequestsPerSecond int `yaml:"requests_per_second"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Load reads the configuration from config/fritter.yaml.
func Load() (*Config, error) {
	return LoadFromPath(filepath.Join("config", "fritter.yaml"))
}

// LoadFromPath reads the configuration from a specific path. A missing file
// yields the defaults; a malformed file is an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen_addr is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session_ttl must be positive")
	}
	return cfg, nil
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	cfg := &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		SessionTTL: 7 * 24 * time.Hour,
	}
	cfg.RateLimit.RequestsPerSecond = 20
	cfg.RateLimit.Burst = 40
	cfg.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FRITTER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FRITTER_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("FRITTER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FRITTER_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		}
	}
	if v := os.Getenv("FRITTER_RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerSecond = n
		}
	}
}
