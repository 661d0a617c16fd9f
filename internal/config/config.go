// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zoobzio/digest"
	"github.com/zoobzio/digest/providers/groq"
)

// Environment variable names.
const (
	EnvAPIKey         = "GROQ_API_KEY"
	EnvModel          = "DIGEST_MODEL"
	EnvTemperature    = "DIGEST_TEMPERATURE"
	EnvBaseURL        = "DIGEST_BASE_URL"
	EnvTimeout        = "DIGEST_TIMEOUT"
	EnvAddr           = "DIGEST_ADDR"
	EnvVariant        = "DIGEST_VARIANT"
	EnvLogLevel       = "DIGEST_LOG_LEVEL"
	EnvAllowedOrigins = "DIGEST_ALLOWED_ORIGINS"
)

// Defaults used when the matching variable is unset.
const (
	DefaultAddr          = ":8080"
	DefaultAllowedOrigin = "http://localhost:3000"
)

// Config is the resolved process configuration. It is read once at startup.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	Temperature    float32
	Timeout        time.Duration
	Addr           string
	Variant        digest.Variant
	LogLevel       slog.Level
	AllowedOrigins []string
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv resolves configuration through getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIKey:  strings.TrimSpace(getenv(EnvAPIKey)),
		Model:   getenv(EnvModel),
		BaseURL: strings.TrimRight(getenv(EnvBaseURL), "/"),
		Addr:    getenv(EnvAddr),
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", EnvAPIKey, digest.ErrMissingCredential)
	}
	if cfg.Model == "" {
		cfg.Model = groq.DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = groq.DefaultBaseURL
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	var errs []error

	cfg.Temperature = digest.DefaultTemperature
	if raw := getenv(EnvTemperature); raw != "" {
		t, err := strconv.ParseFloat(raw, 32)
		if err != nil || t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("%s: invalid temperature %q", EnvTemperature, raw))
		} else {
			cfg.Temperature = float32(t)
			if t == 0 {
				cfg.Temperature = digest.TemperatureZero
			}
		}
	}

	cfg.Timeout = groq.DefaultTimeout
	if raw := getenv(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvTimeout, err))
		} else {
			cfg.Timeout = d
		}
	}

	variant, err := digest.ParseVariant(getenv(EnvVariant))
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", EnvVariant, err))
	}
	cfg.Variant = variant

	if raw := getenv(EnvLogLevel); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		}
	}

	for _, origin := range strings.Split(getenv(EnvAllowedOrigins), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{DefaultAllowedOrigin}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Provider builds the completion provider described by cfg.
func (c *Config) Provider() (*groq.Provider, error) {
	return groq.New(groq.Config{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
	})
}

// Options returns the pipeline options described by cfg.
func (c *Config) Options() []digest.Option {
	return []digest.Option{digest.WithTemperature(c.Temperature)}
}
