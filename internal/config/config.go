// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package config loads application configuration from defaults, an optional
// YAML file, INKLETTER_-prefixed environment variables, and command-line
// flags, in increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// envPrefix is stripped from environment variables before mapping them to
// config keys, e.g. INKLETTER_DATABASE_URL -> database.url.
const envPrefix = "INKLETTER_"

// Config is the fully resolved application configuration.
type Config struct {
	App      AppConfig      `koanf:"app"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Email    EmailConfig    `koanf:"email"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
}

// AppConfig configures the HTTP application server.
type AppConfig struct {
	// Addr is the listen address for the application server.
	Addr string `koanf:"addr"`

	// BaseURL is the externally reachable root URL, used to build links
	// embedded in outbound emails.
	BaseURL string `koanf:"base_url"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL Secret `koanf:"url"`
}

// AuthConfig configures the authentication subsystem.
type AuthConfig struct {
	// Pepper is the process-wide hashing secret, distinct from per-hash salts.
	Pepper Secret `koanf:"pepper"`

	// HashWorkers bounds the pool reserved for CPU-bound password hashing.
	// Zero means GOMAXPROCS.
	HashWorkers int `koanf:"hash_workers"`
}

// EmailConfig configures the outbound email delivery API client.
type EmailConfig struct {
	BaseURL string `koanf:"base_url"`

	// Sender is the address all outbound mail is sent from.
	Sender string `koanf:"sender"`

	// AuthToken authenticates against the delivery API.
	AuthToken Secret `koanf:"auth_token"`

	// Timeout applies to every outbound request.
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	// Addr is the listen address for /metrics and health probes.
	// Empty disables the server.
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
}

// defaults returns the baseline configuration applied before any source.
func defaults() map[string]any {
	return map[string]any{
		"app.addr":          ":8000",
		"app.base_url":      "http://127.0.0.1:8000",
		"auth.hash_workers": 0,
		"email.timeout":     "10s",
		"metrics.addr":      "127.0.0.1:9100",
		"log.format":        "json",
	}
}

// Load resolves configuration from defaults, the YAML file at path (skipped
// when path is empty), environment variables, and flags (nil allowed).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	// Only the first underscore separates the section from the key, so
	// INKLETTER_EMAIL_AUTH_TOKEN maps to email.auth_token.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", 2)
		return strings.Join(parts, ".")
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate checks invariants that cannot wait until first use.
func (c *Config) validate() error {
	if c.Database.URL.Expose() == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.Pepper.Expose() == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.pepper is required")
	}
	if c.Email.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("email.timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("format", c.Log.Format).Errorf("log.format must be json or text")
	}
	return nil
}
