// Package config loads bulkops settings from ~/.bulkops/config.yaml, an
// optional project overlay and BULKOPS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

const (
	configFileName    = "config.yaml"
	defaultDBFileName = "records.db"
	checkpointDirName = "runs"
)

// Environment variables that override the config file.
const (
	EnvHome        = "BULKOPS_HOME"
	EnvProjectDir  = "BULKOPS_PROJECT_DIR"
	EnvLogLevel    = "BULKOPS_LOG_LEVEL"
	EnvLogFormat   = "BULKOPS_LOG_FORMAT"
	EnvStoreDriver = "BULKOPS_STORE_DRIVER"
	EnvStoreDSN    = "BULKOPS_STORE_DSN"
	EnvBatchSize   = "BULKOPS_BATCH_SIZE"
)

// Batch sizes accepted from the config file, run files and flags. The
// engine itself takes any non-negative size.
const (
	MinBatchSize = 1
	MaxBatchSize = 10000
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrBatchSizeOutOfRange = errors.New("batch size must be between 1 and 10000")
)

// ValidateBatchSize checks n against MinBatchSize and MaxBatchSize.
func ValidateBatchSize(n int) error {
	if n < MinBatchSize || n > MaxBatchSize {
		return fmt.Errorf("%w: got %d", ErrBatchSizeOutOfRange, n)
	}
	return nil
}

// Config is the bulkops configuration.
type Config struct {
	Logging    LoggingConfig             `yaml:"logging"`
	Store      StoreConfig               `yaml:"store"`
	Batch      BatchConfig               `yaml:"batch"`
	Checkpoint CheckpointConfig          `yaml:"checkpoint"`
	Operations map[string]map[string]any `yaml:"operations,omitempty"`
	Views      []query.View              `yaml:"views,omitempty"`

	// configPath is where Save writes; empty for in-memory configs.
	configPath string
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// StoreConfig selects the record database.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// BatchConfig holds step defaults.
type BatchConfig struct {
	Size int `yaml:"size"`
}

// CheckpointConfig locates run checkpoints.
type CheckpointConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a configuration with built-in defaults rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  logging.DefaultLevel,
			Format: logging.FormatConsole,
		},
		Store: StoreConfig{
			Driver: storage.DriverSQLite,
			DSN:    filepath.Join(dir, defaultDBFileName),
		},
		Batch:      BatchConfig{Size: batch.DefaultBatchSize},
		Checkpoint: CheckpointConfig{Dir: filepath.Join(dir, checkpointDirName)},
		Operations: map[string]map[string]any{},
		configPath: filepath.Join(dir, configFileName),
	}
}

// New loads the user configuration. A missing or unreadable config file
// yields defaults; environment overrides are always applied.
func New() *Config {
	dir, err := GetConfigDir()
	if err != nil {
		dir = "."
	}
	cfg, err := Load(filepath.Join(dir, configFileName))
	if err != nil {
		cfg = Default(dir)
		cfg.ApplyEnv()
	}
	return cfg
}

// Load reads the config file at path over defaults rooted at its directory
// and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	cfg.configPath = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv applies BULKOPS_* environment overrides. Unparseable numbers are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.Size = n
		}
	}
}

// Validate checks the configuration and joins every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format %q (want json or console)", ErrInvalidConfig, c.Logging.Format))
	}
	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
			errs = append(errs, fmt.Errorf("%w: logging.level: %w", ErrInvalidConfig, err))
		}
	}

	switch c.Store.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("%w: store.driver %q (want %s or %s)",
			ErrInvalidConfig, c.Store.Driver, storage.DriverSQLite, storage.DriverPostgres))
	}
	if c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: store.dsn is required", ErrInvalidConfig))
	}

	if err := ValidateBatchSize(c.Batch.Size); err != nil {
		errs = append(errs, fmt.Errorf("%w: batch.size: %w", ErrInvalidConfig, err))
	}
	if c.Checkpoint.Dir == "" {
		errs = append(errs, fmt.Errorf("%w: checkpoint.dir is required", ErrInvalidConfig))
	}

	seen := make(map[string]bool, len(c.Views))
	for _, v := range c.Views {
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: views: %w", ErrInvalidConfig, err))
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Errorf("%w: views: duplicate id %q", ErrInvalidConfig, v.ID))
		}
		seen[v.ID] = true
	}

	return errors.Join(errs...)
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config has no file path")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(c.configPath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(c.configPath, data, 0600)
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.configPath
}

// GetOperationConfig returns the site preconfiguration of an operation.
// The result is a copy and is never nil.
func (c *Config) GetOperationConfig(operationID string) map[string]any {
	if cfg := maps.Clone(c.Operations[operationID]); cfg != nil {
		return cfg
	}
	return map[string]any{}
}
