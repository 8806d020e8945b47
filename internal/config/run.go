package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/engine/batch"
	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/query"
)

// ErrInvalidRunFile wraps every run file validation failure.
var ErrInvalidRunFile = errors.New("invalid run file")

// RunFile describes one batch run: which operation to apply to which records.
type RunFile struct {
	Operation     string         `yaml:"operation"`
	RecordType    string         `yaml:"record_type"`
	Configuration map[string]any `yaml:"configuration,omitempty"`
	// BatchSize of zero means the configured default.
	BatchSize int           `yaml:"batch_size,omitempty"`
	Source    RunFileSource `yaml:"source"`

	path string
}

// RunFileSource is either a finite list of item tuples or a view.
type RunFileSource struct {
	Items [][]string `yaml:"items,omitempty"`
	View  query.Spec `yaml:"view,omitempty"`
}

// LoadRunFile reads and validates the run file at path.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file %s: %w", path, err)
	}

	var rf RunFile
	if err = yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file %s: %w", path, err)
	}
	rf.path = path

	if err = rf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rf, nil
}

// Path returns the file the run was loaded from.
func (rf *RunFile) Path() string {
	return rf.path
}

// Validate checks the required fields and the item tuples.
func (rf *RunFile) Validate() error {
	var errs []error
	if strings.TrimSpace(rf.Operation) == "" {
		errs = append(errs, fmt.Errorf("%w: operation is required", ErrInvalidRunFile))
	}
	if strings.TrimSpace(rf.RecordType) == "" {
		errs = append(errs, fmt.Errorf("%w: record_type is required", ErrInvalidRunFile))
	}
	if rf.BatchSize != 0 {
		if err := ValidateBatchSize(rf.BatchSize); err != nil {
			errs = append(errs, fmt.Errorf("%w: batch_size: %w", ErrInvalidRunFile, err))
		}
	}
	if _, err := entity.ParseDescriptors(rf.Source.Items); err != nil {
		errs = append(errs, fmt.Errorf("%w: source.items: %w", ErrInvalidRunFile, err))
	}
	return errors.Join(errs...)
}

// BatchSource converts the source section into a batch.Source.
func (rf *RunFile) BatchSource() (batch.Source, error) {
	items, err := entity.ParseDescriptors(rf.Source.Items)
	if err != nil {
		return batch.Source{}, fmt.Errorf("%w: source.items: %w", ErrInvalidRunFile, err)
	}
	return batch.Source{List: items, Query: rf.Source.View}, nil
}

// SessionConfig builds the session configuration for the run, merging the
// site preconfiguration of the operation from cfg.
func (rf *RunFile) SessionConfig(cfg *Config, progress *batch.Progress) batch.SessionConfig {
	var pre map[string]any
	if cfg != nil {
		pre = cfg.GetOperationConfig(rf.Operation)
	}
	return batch.SessionConfig{
		OperationID:      rf.Operation,
		RecordType:       rf.RecordType,
		Configuration:    rf.Configuration,
		Preconfiguration: pre,
		Progress:         progress,
	}
}

// EffectiveBatchSize returns the run's batch size, falling back to the
// configured default.
func (rf *RunFile) EffectiveBatchSize(cfg *Config) int {
	if rf.BatchSize > 0 {
		return rf.BatchSize
	}
	if cfg != nil && cfg.Batch.Size > 0 {
		return cfg.Batch.Size
	}
	return batch.DefaultBatchSize
}
