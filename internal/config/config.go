package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete per-run configuration. It is constructed once per
// run and passed to each component; nothing reads it through process-global
// state.
type Config struct {
	Store   StoreConfig   `yaml:"store" envconfig:"STORE"`
	Data    DataConfig    `yaml:"data" envconfig:"DATA"`
	Ingest  IngestConfig  `yaml:"ingest" envconfig:"INGEST"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
}

// StoreConfig locates the relational store.
type StoreConfig struct {
	Path        string        `yaml:"path" envconfig:"PATH" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" envconfig:"BUSY_TIMEOUT"`
}

// DataConfig locates the raw source files. Each source is resolved as
// <raw_dir>/<source>.csv, or <raw_dir>/<source>.xlsx when no CSV exists.
type DataConfig struct {
	RawDir string `yaml:"raw_dir" envconfig:"RAW_DIR" validate:"required"`
}

// IngestConfig controls the chunked load.
type IngestConfig struct {
	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"min=1"`
	// RowCountTolerance widens the declared expected-row bounds by this
	// fraction before a load count is flagged as out of bounds.
	RowCountTolerance float64 `yaml:"row_count_tolerance" envconfig:"ROW_COUNT_TOLERANCE" validate:"min=0"`
}

// LoggingConfig controls the run-scoped log sink.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ServerConfig configures the read-only query surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// ExportConfig controls the optional CSV export of the published summary.
type ExportConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Path    string `yaml:"path" envconfig:"PATH"`
}

// Default returns the baseline configuration before file and environment
// overrides are applied.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Path:        "data/inventory.db",
			BusyTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			RawDir: "data/raw",
		},
		Ingest: IngestConfig{
			ChunkSize:         50000,
			RowCountTolerance: 0.25,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pipeline.log",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Export: ExportConfig{
			Enabled: false,
			Path:    "data/vendor_sales_summary.csv",
		},
	}
}

// Load builds the run configuration: defaults, then the YAML file (when it
// exists), then VENDORPERF_* environment variables, then validation.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
			}
		}
	}

	if err := envconfig.Process("VENDORPERF", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	return validator.New().Struct(c)
}
