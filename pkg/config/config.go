// Package config manages the adsctl tool configuration and the ~/.adsctl
// directory structure. It handles loading, saving, and initializing the tool
// configuration; rule configuration is a separate per-account YAML file
// owned by the planner.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	// AdsctlDir is the tool's home directory name.
	AdsctlDir = ".adsctl"
	// ConfigFile is the TOML configuration file inside AdsctlDir.
	ConfigFile = "config.toml"
	// DatabaseFile is the apply-history SQLite database.
	DatabaseFile = "adsctl.db"
	// PlansDir holds the generated plan files.
	PlansDir = "plans"
	// ReportsDir holds rendered markdown reports.
	ReportsDir = "reports"
)

// Config is the persistent tool configuration.
type Config struct {
	// AccountID is the Google Ads customer id operations run against.
	AccountID string `toml:"account_id"`
	// MerchantID is the Merchant Center account id.
	MerchantID string `toml:"merchant_id"`
	// SnapshotRoot is the directory holding timestamped snapshot dumps.
	SnapshotRoot string `toml:"snapshot_root"`
	// RuleConfig is the path to the per-account rule configuration YAML.
	RuleConfig string `toml:"rule_config"`
	// OpTimeoutSeconds bounds a single mutation dispatch during apply.
	// Zero means the built-in default.
	OpTimeoutSeconds int `toml:"op_timeout_seconds"`

	path string // path to the .adsctl directory
}

// DefaultDir returns the tool home directory, ~/.adsctl.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, AdsctlDir), nil
}

// Load reads the configuration from the default directory.
func Load() (*Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the configuration from a specific .adsctl directory.
func LoadFrom(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no configuration at %s, run `adsctl init` first", configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = dir
	return &cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Dir returns the path to the .adsctl directory.
func (c *Config) Dir() string {
	return c.path
}

// DatabasePath returns the path to the apply-history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// PlansPath returns the path to the plans directory.
func (c *Config) PlansPath() string {
	return filepath.Join(c.path, PlansDir)
}

// ReportsPath returns the path to the reports directory.
func (c *Config) ReportsPath() string {
	return filepath.Join(c.path, ReportsDir)
}

// Initialize creates the .adsctl directory with an initial configuration.
func Initialize(dir string, cfg Config) (*Config, error) {
	if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
		return nil, fmt.Errorf("adsctl is already initialized at %s", dir)
	}

	for _, sub := range []string{"", PlansDir, ReportsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", filepath.Join(dir, sub), err)
		}
	}

	cfg.path = dir
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
