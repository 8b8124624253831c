// Package config provides configuration management for the usage pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingViewMarker      = errors.New("logs.view_marker is required")
	ErrInvalidMinFields       = errors.New("logs.min_fields must be at least 1")
	ErrFrontendMissingLabel   = errors.New("frontend label is required")
	ErrFrontendMissingPattern = errors.New("frontend pattern is required")
	ErrDuplicateFrontendLabel = errors.New("frontend labels must be unique")
	ErrMissingTablePath       = errors.New("table.path is required")
	ErrInvalidSkipRows        = errors.New("table.skip_rows must be non-negative")
	ErrMissingTableColumn     = errors.New("table column name is required")
	ErrMissingReportOutput    = errors.New("report.output is required")
	ErrInvalidWorkers         = errors.New("workers must be non-negative")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete pipeline configuration.
type Config struct {
	Logs    LogsConfig    `yaml:"logs"`
	Table   TableConfig   `yaml:"table"`
	Report  ReportConfig  `yaml:"report"`
	Roster  string        `yaml:"roster"`
	Workers int           `yaml:"workers"`
	Logging LoggingConfig `yaml:"logging"`
}

// LogsConfig contains raw-log filtering settings.
type LogsConfig struct {
	ViewMarker string           `yaml:"view_marker"`
	Server     string           `yaml:"server"`
	Frontends  []FrontendConfig `yaml:"frontends"`
	MinFields  int              `yaml:"min_fields"`
	OutputDir  string           `yaml:"output_dir"`
}

// FrontendConfig names one portal frontend and the request-path capture
// that identifies it in the log line.
type FrontendConfig struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
}

// TableConfig locates the institution IP table and describes its layout.
type TableConfig struct {
	Path         string `yaml:"path"`
	Sheet        string `yaml:"sheet"`
	SkipRows     int    `yaml:"skip_rows"`
	NameColumn   string `yaml:"name_column"`
	AbbrColumn   string `yaml:"abbr_column"`
	RangesColumn string `yaml:"ranges_column"`
	ProxyColumn  string `yaml:"proxy_column"`
}

// ReportConfig defines report output behavior.
type ReportConfig struct {
	Output  string `yaml:"output"`
	Console bool   `yaml:"console"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Logs: LogsConfig{
			ViewMarker: "/view/",
			MinFields:  4,
			OutputDir:  "data/processed",
		},
		Table: TableConfig{
			Path:         "data/ip_table.xlsx",
			SkipRows:     2,
			NameColumn:   "Institution",
			AbbrColumn:   "Abbreviation",
			RangesColumn: "IP Addresses",
			ProxyColumn:  "Proxy IPs",
		},
		Report: ReportConfig{
			Output:  "data/reports/usage-report.xlsx",
			Console: true,
		},
		Roster:  "data/institutions.txt",
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from a YAML file over the defaults. An
// empty path returns the defaults unchanged. Values from a .env file in
// the working directory are applied last.
func LoadConfig(filepath string) (*Config, error) {
	cfg := DefaultConfig()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.applyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overrides settings from process environment variables, after
// loading a .env file when one exists alongside the working directory.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("SERVER_NAME"); v != "" {
		c.Logs.Server = v
	}

	if v := os.Getenv("IP_TABLE_PATH"); v != "" {
		c.Table.Path = v
	}

	if v := os.Getenv("REPORT_OUTPUT"); v != "" {
		c.Report.Output = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Check log filter config
	if c.Logs.ViewMarker == "" {
		return ErrMissingViewMarker
	}

	if c.Logs.MinFields < 1 {
		return ErrInvalidMinFields
	}

	seen := make(map[string]bool, len(c.Logs.Frontends))

	for i, fe := range c.Logs.Frontends {
		if fe.Label == "" {
			return fmt.Errorf("%w: frontends[%d]", ErrFrontendMissingLabel, i)
		}

		if fe.Pattern == "" {
			return fmt.Errorf("%w: frontends[%d]", ErrFrontendMissingPattern, i)
		}

		if seen[fe.Label] {
			return fmt.Errorf("%w: %q", ErrDuplicateFrontendLabel, fe.Label)
		}
		seen[fe.Label] = true
	}

	// Validate table config
	if c.Table.Path == "" {
		return ErrMissingTablePath
	}

	if c.Table.SkipRows < 0 {
		return ErrInvalidSkipRows
	}

	if c.Table.NameColumn == "" {
		return fmt.Errorf("%w: table.name_column", ErrMissingTableColumn)
	}

	if c.Table.RangesColumn == "" {
		return fmt.Errorf("%w: table.ranges_column", ErrMissingTableColumn)
	}

	if c.Table.ProxyColumn == "" {
		return fmt.Errorf("%w: table.proxy_column", ErrMissingTableColumn)
	}

	// Validate report config
	if c.Report.Output == "" {
		return ErrMissingReportOutput
	}

	if c.Workers < 0 {
		return ErrInvalidWorkers
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// FrontendLabels returns the configured portal labels in declaration order.
func (l *LogsConfig) FrontendLabels() []string {
	labels := make([]string, 0, len(l.Frontends))

	for _, fe := range l.Frontends {
		labels = append(labels, fe.Label)
	}

	return labels
}

// GetWorkers resolves the worker count: zero means one worker per
// available CPU.
func (c *Config) GetWorkers() int {
	if c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}

	return c.Workers
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Table: %s, Frontends: %d, Output: %s}",
		c.Table.Path,
		len(c.Logs.Frontends),
		c.Report.Output,
	)
}
