package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aussiebroadwan/signauth/pkg/httpx"
)

type Config struct {
	APIURL       string        `toml:"api_url"`       // Required: API base endpoint
	ClientID     string        `toml:"client_id"`     // Required: service client id
	ClientSecret string        `toml:"client_secret"` // Required: service client secret
	HTTPTimeout  time.Duration `toml:"http_timeout"`  // Optional: per request timeout (default: 10s)
	Env          string        `toml:"env"`           // Environment (dev, staging, prod) (default: prod)
	LogLevel     string        `toml:"log_level"`     // Log level (debug, info, warn, error) (default: warn)
	LogFormat    string        `toml:"log_format"`    // Log format (json, text) (default: text)

	// GrantLimit throttles token endpoint calls, env only
	GrantLimit httpx.RateLimitConfig `toml:"-"`

	// LogOutput receives log records (default: stderr)
	LogOutput io.Writer `toml:"-"`
}

// DefaultConfigPath returns SNAUTH_CONFIG if set, otherwise
// ~/.config/snauth/config.toml.
func DefaultConfigPath() string {
	if p := os.Getenv("SNAUTH_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "snauth", "config.toml")
}

// LoadConfig reads the TOML file at path, if it exists, then applies
// environment overrides. Environment variables always win over file values.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		HTTPTimeout: 10 * time.Second,
		Env:         "prod",
		LogLevel:    "warn",
		LogFormat:   "text",
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.APIURL = getEnvOrDefault("SNAUTH_API_URL", cfg.APIURL)
	cfg.ClientID = getEnvOrDefault("SNAUTH_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = getEnvOrDefault("SNAUTH_CLIENT_SECRET", cfg.ClientSecret)
	cfg.HTTPTimeout = getEnvDurationOrDefault("SNAUTH_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.GrantLimit = httpx.ParseRateLimitFromEnv("GRANT", httpx.GrantLimit)

	return cfg, nil
}

// Validate reports every missing required field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIURL) == "" {
		errs = append(errs, errors.New("api_url is required (SNAUTH_API_URL)"))
	}
	if strings.TrimSpace(c.ClientID) == "" {
		errs = append(errs, errors.New("client_id is required (SNAUTH_CLIENT_ID)"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client_secret is required (SNAUTH_CLIENT_SECRET)"))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "10s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
