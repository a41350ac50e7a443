// Package config provides the configuration for shapecsv runs.
//
// The configuration is organized into sections:
//   - Import: file reference expansion and the timezone of timestamps
//   - Export: target directory and unknown value document name
//   - Seasonal: the sentinel year and placeholder of seasonal time points
//   - Logging: level and encoding of the zap logger
//   - Observability: metrics and tracing
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Import.BasePath = "./data"
//	cfg.Import.Timezone = "Europe/London"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config is the configuration of one import or export run.
type Config struct {
	// Import settings apply when reading CSV into datasets
	Import ImportConfig `yaml:"import" json:"import" mapstructure:"import"`

	// Export settings apply when writing datasets to CSV
	Export ExportConfig `yaml:"export" json:"export" mapstructure:"export"`

	// Seasonal time point convention
	Seasonal SeasonalConfig `yaml:"seasonal" json:"seasonal" mapstructure:"seasonal"`

	// Logging settings for the zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Observability settings for metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ImportConfig controls how cells are classified.
type ImportConfig struct {
	// ExpandFilenames treats cells naming existing files as data file references
	ExpandFilenames bool `yaml:"expand_filenames" json:"expand_filenames" mapstructure:"expand_filenames"`
	// BasePath is the directory file references are relative to
	BasePath string `yaml:"base_path" json:"base_path" mapstructure:"base_path"`
	// Timezone localises naive timestamps (IANA name)
	Timezone string `yaml:"timezone" json:"timezone" mapstructure:"timezone"`
}

// ExportConfig controls where exported files go.
type ExportConfig struct {
	// TargetDir is the root directory of exported networks
	TargetDir string `yaml:"target_dir" json:"target_dir" mapstructure:"target_dir"`
	// UnknownFile names the unknown value document in each directory
	UnknownFile string `yaml:"unknown_file" json:"unknown_file" mapstructure:"unknown_file"`
}

// SeasonalConfig holds the seasonal time point convention.
type SeasonalConfig struct {
	// Key is the sentinel year of seasonal time points
	Key string `yaml:"key" json:"key" mapstructure:"key"`
	// Placeholder is the year token written in seasonal literals
	Placeholder string `yaml:"placeholder" json:"placeholder" mapstructure:"placeholder"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// Development enables human friendly output
	Development bool `yaml:"development" json:"development" mapstructure:"development"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates dataset counters
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// EnableTracing activates run tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Import: ImportConfig{
			ExpandFilenames: true,
			BasePath:        ".",
			Timezone:        "UTC",
		},
		Export: ExportConfig{
			TargetDir:   ".",
			UnknownFile: "unknown_values.json",
		},
		Seasonal: SeasonalConfig{
			Key:         "9999",
			Placeholder: "XXXX",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Seasonal.Key) != 4 {
		return fmt.Errorf("seasonal.key must be a four digit year, got %q", c.Seasonal.Key)
	}
	if _, err := strconv.Atoi(c.Seasonal.Key); err != nil {
		return fmt.Errorf("seasonal.key must be a four digit year, got %q", c.Seasonal.Key)
	}
	if c.Seasonal.Placeholder == "" {
		return fmt.Errorf("seasonal.placeholder is required")
	}
	if c.Export.UnknownFile == "" {
		return fmt.Errorf("export.unknown_file is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	return nil
}

// Location loads the import timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Import.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Import.Timezone)
	if err != nil {
		return nil, fmt.Errorf("import.timezone: %w", err)
	}
	return loc, nil
}
