package operation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Catalog errors.
var (
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrInvalidDefinition = errors.New("invalid operation definition")
)

// UnknownOperationError reports an operation ID missing from the catalog.
type UnknownOperationError struct {
	ID string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownOperation, e.ID)
}

// Unwrap returns ErrUnknownOperation.
func (e *UnknownOperationError) Unwrap() error {
	return ErrUnknownOperation
}

// Definition is the declared metadata of an operation.
type Definition struct {
	ID          string `json:"id"                    yaml:"id"`
	Label       string `json:"label"                 yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version"               yaml:"version"`

	// PassView requests the full query rows of each queue.
	PassView bool `json:"pass_view"    yaml:"pass_view"`
	// PassContext requests the run progress before each step.
	PassContext bool `json:"pass_context" yaml:"pass_context"`

	// Writes lists the record fields the operation changes.
	Writes []string `json:"writes,omitempty" yaml:"writes,omitempty"`

	// DefaultConfig fills keys absent from the session configuration.
	DefaultConfig map[string]any `json:"default_config,omitempty" yaml:"default_config,omitempty"`
}

type catalogEntry struct {
	def     Definition
	version *semver.Version
	factory Factory
}

// Catalog maps operation IDs to definitions and factories.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]catalogEntry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]catalogEntry)}
}

// Register adds an operation. When the ID is already registered the higher
// semantic version wins; registering an equal or lower version is a no-op.
func (c *Catalog) Register(def Definition, factory Factory) error {
	if def.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if factory == nil {
		return fmt.Errorf("%w: %s has no factory", ErrInvalidDefinition, def.ID)
	}
	if def.Label == "" {
		def.Label = def.ID
	}
	if def.Version == "" {
		def.Version = "0.0.0"
	}
	v, err := semver.NewVersion(def.Version)
	if err != nil {
		return fmt.Errorf("%w: %s version %s has invalid semver format: %w",
			ErrInvalidDefinition, def.ID, def.Version, err)
	}
	def.DefaultConfig = maps.Clone(def.DefaultConfig)
	def.Writes = slices.Clone(def.Writes)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[def.ID]; ok && !v.GreaterThan(existing.version) {
		return nil
	}
	c.entries[def.ID] = catalogEntry{def: def, version: v, factory: factory}
	return nil
}

// Definition returns the metadata of the operation with the given ID.
func (c *Catalog) Definition(id string) (Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return Definition{}, &UnknownOperationError{ID: id}
	}
	def := entry.def
	def.DefaultConfig = maps.Clone(entry.def.DefaultConfig)
	def.Writes = slices.Clone(entry.def.Writes)
	return def, nil
}

// Create builds a configured instance of the operation with the given ID.
func (c *Catalog) Create(id string, cfg map[string]any, deps Deps) (Operation, error) {
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, &UnknownOperationError{ID: id}
	}

	op, err := entry.factory(maps.Clone(cfg), deps)
	if err != nil {
		return nil, fmt.Errorf("creating operation %s: %w", id, err)
	}
	return op, nil
}

// List returns all definitions sorted by ID.
func (c *Catalog) List() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]Definition, 0, len(c.entries))
	for _, entry := range c.entries {
		defs = append(defs, entry.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}
