// Package config loads and watches the surface.yaml service configuration.
// Secrets (JWT signing key, triage API key) are never stored in the file;
// the file names the environment variables that hold them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/license"
	"github.com/surfacehq/surface/registry"
)

// Config is the top-level surface.yaml structure.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Cache    CacheConfig     `yaml:"cache"`
	Registry registry.Config `yaml:"registry"`
	Auth     AuthConfig      `yaml:"auth"`
	Triage   TriageConfig    `yaml:"triage"`
	License  LicenseConfig   `yaml:"license"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string `yaml:"listen"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// GetReadTimeout parses the read timeout, defaulting to 10s.
func (s ServerConfig) GetReadTimeout() time.Duration {
	return parseDuration(s.ReadTimeout, 10*time.Second)
}

// GetWriteTimeout parses the write timeout, defaulting to 30s.
func (s ServerConfig) GetWriteTimeout() time.Duration {
	return parseDuration(s.WriteTimeout, 30*time.Second)
}

// GetShutdownTimeout parses the shutdown timeout, defaulting to 15s.
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(s.ShutdownTimeout, 15*time.Second)
}

// DatabaseConfig configures the findings database.
type DatabaseConfig struct {
	// Path is the sqlite database file, or ":memory:".
	Path string `yaml:"path"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	// URL is a redis URL; empty disables the cache.
	URL string `yaml:"url"`

	// DefaultTTL is how long cached query results live, e.g. "5m".
	DefaultTTL string `yaml:"default_ttl"`
}

// GetDefaultTTL parses the TTL, defaulting to 5m.
func (c CacheConfig) GetDefaultTTL() time.Duration {
	return parseDuration(c.DefaultTTL, 5*time.Minute)
}

// AuthConfig configures API authentication.
type AuthConfig struct {
	// JWTSecretEnv names the env var holding the HS256 signing key.
	JWTSecretEnv string `yaml:"jwt_secret_env"`

	// TokenTTL bounds issued token lifetimes, e.g. "24h".
	TokenTTL string `yaml:"token_ttl"`
}

// JWTSecret resolves the signing key from the environment.
func (a AuthConfig) JWTSecret() (string, error) {
	env := a.JWTSecretEnv
	if env == "" {
		env = "SURFACE_JWT_SECRET"
	}
	secret := os.Getenv(env)
	if secret == "" {
		return "", surface.NewConfigurationError("config.JWTSecret",
			fmt.Errorf("environment variable %s is not set", env))
	}
	return secret, nil
}

// GetTokenTTL parses the token TTL, defaulting to 24h.
func (a AuthConfig) GetTokenTTL() time.Duration {
	return parseDuration(a.TokenTTL, 24*time.Hour)
}

// TriageConfig configures the AI triage advisor.
type TriageConfig struct {
	Enabled bool `yaml:"enabled"`

	// Model is the Gemini model name, e.g. "gemini-1.5-flash".
	Model string `yaml:"model"`

	// APIKeyEnv names the env var holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the triage API key from the environment.
func (t TriageConfig) APIKey() (string, error) {
	env := t.APIKeyEnv
	if env == "" {
		env = "SURFACE_TRIAGE_API_KEY"
	}
	key := os.Getenv(env)
	if key == "" {
		return "", surface.NewConfigurationError("config.APIKey",
			fmt.Errorf("environment variable %s is not set", env))
	}
	return key, nil
}

// LicenseConfig configures module gating. Rules are editable at runtime:
// the watcher reloads them on file change.
type LicenseConfig struct {
	// Rules overrides the built-in gate rules when non-empty.
	Rules []license.Rule `yaml:"rules"`
}

// GateRules returns the configured rules or the defaults.
func (l LicenseConfig) GateRules() []license.Rule {
	if len(l.Rules) > 0 {
		return l.Rules
	}
	return license.DefaultRules()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Listen: ":8080"},
		Database: DatabaseConfig{Path: "surface.db"},
		Cache:    CacheConfig{URL: "redis://localhost:6379"},
		Triage:   TriageConfig{Model: "gemini-1.5-flash"},
	}
}

// Load reads and parses the config file. If the path is a directory it
// looks for surface.yaml or surface.yml inside it. Missing fields keep
// their defaults.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, surface.NewConfigurationError("config.Load", err)
	}

	configPath := path
	if info.IsDir() {
		configPath, err = findConfigFile(path)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, surface.NewConfigurationError("config.Load", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, surface.NewConfigurationError("config.Load",
			fmt.Errorf("failed to parse %s: %w", configPath, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile(dir string) (string, error) {
	for _, name := range []string{"surface.yaml", "surface.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", surface.NewConfigurationError("config.Load",
		fmt.Errorf("no surface.yaml or surface.yml found in %s", dir))
}

// Validate checks the configuration for inconsistencies the service cannot
// start with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return surface.NewConfigurationError("config.Validate",
			fmt.Errorf("server.listen cannot be empty: %w", surface.ErrInvalidConfig))
	}
	if c.Database.Path == "" {
		return surface.NewConfigurationError("config.Validate",
			fmt.Errorf("database.path cannot be empty: %w", surface.ErrInvalidConfig))
	}
	// Compile eagerly so a broken rule fails startup, not the first request.
	if _, err := license.NewGate(c.License.GateRules()); err != nil {
		return err
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
