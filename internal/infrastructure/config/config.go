// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for directory configuration.
	DefaultConfigDir = ".directory"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite file name inside DefaultConfigDir.
	DefaultDatabaseFile = "directory.db"
)

// Environment variables that override file values.
const (
	EnvDBPath          = "DIRECTORY_DB_PATH"
	EnvFuzzyThreshold  = "DIRECTORY_FUZZY_THRESHOLD"
	EnvLogLevel        = "DIRECTORY_LOG_LEVEL"
	EnvMetricsTextfile = "DIRECTORY_METRICS_TEXTFILE"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	SQLite    SQLiteConfig    `yaml:"sqlite,omitempty"`
	Detection DetectionConfig `yaml:"detection,omitempty"`
	Resolver  ResolverConfig  `yaml:"resolver,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Relative paths are
	// resolved against the directory holding .directory/.
	Path string `yaml:"path,omitempty" validate:"required"`
	// BusyTimeout bounds how long a write waits for a lock.
	BusyTimeout time.Duration `yaml:"busy_timeout,omitempty" validate:"gte=0"`
}

// DetectionConfig holds duplicate detection settings.
type DetectionConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" validate:"gte=0,lte=1"`
	FuzzyBlocking  string  `yaml:"fuzzy_blocking,omitempty" validate:"oneof=none first_token"`
}

// ResolverConfig holds merge and archive settings.
type ResolverConfig struct {
	// TxTimeout applies only when the caller's context has no deadline.
	TxTimeout time.Duration `yaml:"tx_timeout,omitempty" validate:"gte=0"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" validate:"oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"oneof=json console"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus text exposition after each command.
	Textfile string `yaml:"textfile,omitempty"`
}

var validate = validator.New()

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			Path:        filepath.Join(DefaultConfigDir, DefaultDatabaseFile),
			BusyTimeout: 5 * time.Second,
		},
		Detection: DetectionConfig{
			FuzzyThreshold: 0.8,
			FuzzyBlocking:  "none",
		},
		Resolver: ResolverConfig{
			TxTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from the .directory directory in the given path,
// applies environment overrides and validates the result.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'directory init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(cfg.SQLite.Path) {
		cfg.SQLite.Path = filepath.Join(basePath, cfg.SQLite.Path)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv(EnvFuzzyThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvFuzzyThreshold, v, err)
		}
		c.Detection.FuzzyThreshold = f
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvMetricsTextfile); v != "" {
		c.Metrics.Textfile = v
	}
	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("invalid config: %s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// ConfigDir returns the path to the .directory config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}
