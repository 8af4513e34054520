// Package yaml provides the YAML configuration loader.
package yaml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no --config flag is given
const DefaultConfigFile = "enforcer.yaml"

// Config is the resolved runtime configuration
type Config struct {
	Database  DatabaseConfig
	Lifecycle LifecycleConfig
	Log       LogConfig
}

// DatabaseConfig selects the policy store
type DatabaseConfig struct {
	Driver       string
	DSN          string
	DSNSecret    string
	MaxOpenConns int
}

// LifecycleConfig tunes the artifact lifecycle
type LifecycleConfig struct {
	DeprecationWindowMonths int
}

// LogConfig selects log verbosity and format
type LogConfig struct {
	Level  string
	Format string
}

// yamlConfig represents the raw YAML structure
type yamlConfig struct {
	Database  yamlDatabase  `yaml:"database"`
	Lifecycle yamlLifecycle `yaml:"lifecycle"`
	Log       yamlLog       `yaml:"log"`
}

type yamlDatabase struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	DSNSecret    string `yaml:"dsn_secret"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type yamlLifecycle struct {
	DeprecationWindowMonths *int `yaml:"deprecation_window_months"`
}

type yamlLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Environment variables that override file settings
const (
	EnvDBDriver    = "ENFORCER_DB_DRIVER"
	EnvDBDSN       = "ENFORCER_DB_DSN"
	EnvDBDSNSecret = "ENFORCER_DB_DSN_SECRET"
	EnvLogLevel    = "ENFORCER_LOG_LEVEL"
)

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "enforcer.db"},
		Lifecycle: LifecycleConfig{DeprecationWindowMonths: 6},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// ConfigParser parses YAML configuration files
type ConfigParser struct {
	getenv func(string) string
}

// NewConfigParser creates a parser reading overrides from the process environment
func NewConfigParser() *ConfigParser {
	return &ConfigParser{getenv: os.Getenv}
}

// NewConfigParserWithEnv creates a parser with a custom environment lookup
func NewConfigParserWithEnv(getenv func(string) string) *ConfigParser {
	return &ConfigParser{getenv: getenv}
}

// Load reads the file at path, applies environment overrides and validates the result.
// A missing default file is not an error; a missing explicit file is.
func (p *ConfigParser) Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	//nolint:gosec // G304: path is the operator-supplied configuration file
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		data = nil
	default:
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	cfg, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses YAML bytes over the defaults and applies environment overrides
func (p *ConfigParser) Parse(data []byte) (*Config, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := DefaultConfig()
	if raw.Database.Driver != "" {
		cfg.Database.Driver = raw.Database.Driver
	}
	if raw.Database.DSN != "" {
		cfg.Database.DSN = raw.Database.DSN
	}
	cfg.Database.DSNSecret = raw.Database.DSNSecret
	cfg.Database.MaxOpenConns = raw.Database.MaxOpenConns
	if raw.Lifecycle.DeprecationWindowMonths != nil {
		cfg.Lifecycle.DeprecationWindowMonths = *raw.Lifecycle.DeprecationWindowMonths
	}
	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = raw.Log.Format
	}

	p.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *ConfigParser) applyEnv(cfg *Config) {
	if p.getenv == nil {
		return
	}
	if v := p.getenv(EnvDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := p.getenv(EnvDBDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := p.getenv(EnvDBDSNSecret); v != "" {
		cfg.Database.DSNSecret = v
	}
	if v := p.getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the settings that cannot be corrected later
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite, mysql or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns cannot be negative, got %d", c.Database.MaxOpenConns)
	}
	if c.Lifecycle.DeprecationWindowMonths < 0 {
		return fmt.Errorf("lifecycle.deprecation_window_months cannot be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
