package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rshade/bulkops/internal/query"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyLogging    = "logging"
	keyStore      = "store"
	keyBatch      = "batch"
	keyCheckpoint = "checkpoint"
	keyOperations = "operations"
	keyViews      = "views"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyLogging:    true,
	keyStore:      true,
	keyBatch:      true,
	keyCheckpoint: true,
	keyOperations: true,
	keyViews:      true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = decodeSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// decodeSection decodes node into a fresh zero value of the section named key
// and replaces the target field with it. Decoding into the existing field
// would merge maps instead of replacing them.
func decodeSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyLogging:
		var v LoggingConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Logging = v
	case keyStore:
		var v StoreConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Store = v
	case keyBatch:
		var v BatchConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Batch = v
	case keyCheckpoint:
		var v CheckpointConfig
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Checkpoint = v
	case keyOperations:
		var v map[string]map[string]any
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Operations = v
	case keyViews:
		var v []query.View
		if err := node.Decode(&v); err != nil {
			return err
		}
		target.Views = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
