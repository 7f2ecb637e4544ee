// Package config loads and validates the YAML run configuration. A broken
// configuration always aborts the run before any measurement is touched.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/RaduCristea123/OBIWAN/internal/archive"
	"github.com/RaduCristea123/OBIWAN/internal/scc"
)

// ConfigError marks a configuration problem. Unlike per-measurement
// errors it is always fatal.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DatalogConfig selects where the processing report is written. Both sinks
// may be active at once; both may be empty.
type DatalogConfig struct {
	CSVPath    string `yaml:"csv_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Config is the full YAML run configuration.
type Config struct {
	SCC scc.Settings `yaml:"scc"`

	// ConfigurationsFolder holds one sample data file per registered
	// system configuration, named by system ID.
	ConfigurationsFolder string `yaml:"scc_configurations_folder"`
	StationCode          string `yaml:"station_code"`

	MaxUploadRetries int `yaml:"maximum_upload_retries"`

	// Segmentation parameters, all in seconds.
	MaxGap    int `yaml:"maximum_measurement_gap"`
	MinLength int `yaml:"minimum_measurement_length"`
	MaxLength int `yaml:"maximum_measurement_length"`

	CenterType int `yaml:"measurement_center_type"`

	WatermarkFile string `yaml:"time_parameter_file"`
	NetCDFOutDir  string `yaml:"netcdf_out_folder"`

	ConverterCommand string   `yaml:"converter_command"`
	ConverterArgs    []string `yaml:"converter_arguments"`

	Debug     bool       `yaml:"measurements_debug"`
	DebugDir  string     `yaml:"measurements_debug_dir"`
	TestLists [][]string `yaml:"test_lists"`

	Datalog DatalogConfig `yaml:"datalog"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: errors.Wrap(err, "could not read configuration file")}
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, &ConfigError{Err: errors.Wrap(err, "could not parse configuration file")}
	}

	if cfg.NetCDFOutDir == "" {
		cfg.NetCDFOutDir, _ = os.Getwd()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every run needs.
func (c *Config) Validate() error {
	if c.ConfigurationsFolder == "" {
		return &ConfigError{Field: "scc_configurations_folder", Err: errors.New("missing")}
	}
	if c.StationCode == "" {
		return &ConfigError{Field: "station_code", Err: errors.New("missing")}
	}
	if c.ConverterCommand == "" {
		return &ConfigError{Field: "converter_command", Err: errors.New("missing")}
	}
	if c.MaxGap <= 0 {
		return &ConfigError{Field: "maximum_measurement_gap", Err: errors.New("must be positive")}
	}
	if c.MinLength <= 0 || c.MaxLength <= 0 {
		return &ConfigError{Field: "measurement length", Err: errors.New("must be positive")}
	}
	if c.MinLength > c.MaxLength {
		return &ConfigError{Field: "minimum_measurement_length", Err: errors.New("larger than maximum_measurement_length")}
	}
	if c.MaxUploadRetries < 0 {
		return &ConfigError{Field: "maximum_upload_retries", Err: errors.New("must not be negative")}
	}

	switch c.CenterType {
	case archive.CenterDisabled, archive.CenterHalfHour, archive.CenterHour:
	default:
		return &ConfigError{Field: "measurement_center_type", Err: fmt.Errorf("unknown value %d", c.CenterType)}
	}

	return nil
}

func (c *Config) MaxGapDuration() time.Duration {
	return time.Duration(c.MaxGap) * time.Second
}

func (c *Config) MinLengthDuration() time.Duration {
	return time.Duration(c.MinLength) * time.Second
}

func (c *Config) MaxLengthDuration() time.Duration {
	return time.Duration(c.MaxLength) * time.Second
}

// SegmentOptions maps the configured parameters onto the segmenter's
// option set.
func (c *Config) SegmentOptions() archive.SegmentOptions {
	return archive.SegmentOptions{
		MaxGap:     c.MaxGapDuration(),
		MinLength:  c.MinLengthDuration(),
		MaxLength:  c.MaxLengthDuration(),
		CenterType: c.CenterType,
	}
}
