// ABOUTME: Configuration loading and parsing for the anlog CLI
// ABOUTME: YAML files with environment variable expansion, defaults, and validation

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the complete anlog configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Legacy   LegacyConfig   `yaml:"legacy"`
	Logging  LoggingConfig  `yaml:"logging"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// DatabaseConfig holds the durable snapshot location
type DatabaseConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
}

// LegacyConfig points at the old flat JSON store consumed by the one-time import
type LegacyConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultsConfig holds the daily goals used for newly created profiles when
// the caller supplies none.
type DefaultsConfig struct {
	KcalGoal    int     `yaml:"kcal_goal"`
	ProteinGoal float64 `yaml:"protein_goal"`
	CarbsGoal   float64 `yaml:"carbs_goal"`
	FatGoal     float64 `yaml:"fat_goal"`
}

// Default returns a config with every field filled in. The snapshot lands
// under the user's XDG data directory.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{SnapshotPath: filepath.Join(defaultDataDir(), "anlog.db")},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Defaults: DefaultsConfig{KcalGoal: 2000, ProteinGoal: 50, CarbsGoal: 250, FatGoal: 65},
	}
}

// Load reads a configuration file and returns a parsed Config with defaults
// applied. Environment variables in the format ${VAR_NAME} are expanded.
// A missing file is not an error: the defaults stand alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values; unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.SnapshotPath == "" {
		return fmt.Errorf("database.snapshot_path is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.Defaults.KcalGoal < 0 {
		return fmt.Errorf("defaults.kcal_goal must not be negative")
	}
	return nil
}

// defaultDataDir resolves XDG_DATA_HOME/anlog, falling back to
// ~/.local/share/anlog.
func defaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "anlog")
}

// DefaultConfigPath resolves the config file location.
// Priority: ANLOG_CONFIG env var > XDG_CONFIG_HOME/anlog/anlog.yaml >
// ~/.config/anlog/anlog.yaml.
func DefaultConfigPath() string {
	if envPath := os.Getenv("ANLOG_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "anlog.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "anlog", "anlog.yaml")
}
