package batch

import (
	"context"
	"fmt"

	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/storage"
)

// SessionConfig is the input of Processor.Initialize.
type SessionConfig struct {
	OperationID string
	RecordType  string

	// Configuration is the explicit per-run operation configuration.
	Configuration map[string]any

	// Preconfiguration holds site defaults; it fills only keys absent from
	// Configuration.
	Preconfiguration map[string]any

	// Progress is pushed to progress-aware operations at initialization.
	// It is only read.
	Progress *Progress
}

// Session is the per-run state established once by Initialize.
type Session struct {
	OperationID string
	RecordType  string
	Config      map[string]any
	Definition  operation.Definition
	Storage     storage.Storage

	operation operation.Operation
}

// Initialize resolves the operation and the record storage, merges the
// configuration and creates the operation instance. On failure the
// processor is left uninitialized.
func (p *Processor) Initialize(ctx context.Context, cfg SessionConfig) error {
	if p.session != nil {
		return ErrAlreadyInitialized
	}

	def, err := p.catalog.Definition(cfg.OperationID)
	if err != nil {
		return err
	}

	store, err := p.provider.Storage(cfg.RecordType)
	if err != nil {
		return fmt.Errorf("initializing %s: %w", cfg.OperationID, err)
	}

	merged := operation.MergeConfig(cfg.Configuration, cfg.Preconfiguration, def.DefaultConfig)
	op, err := p.catalog.Create(cfg.OperationID, merged, operation.Deps{
		RecordType: cfg.RecordType,
		Storage:    store,
	})
	if err != nil {
		return err
	}

	if aware, ok := op.(operation.ProgressAware); ok {
		var snapshot operation.Progress
		if cfg.Progress != nil {
			snapshot = cfg.Progress.Snapshot()
		}
		aware.SetProgress(snapshot)
	}

	p.session = &Session{
		OperationID: cfg.OperationID,
		RecordType:  cfg.RecordType,
		Config:      merged,
		Definition:  def,
		Storage:     store,
		operation:   op,
	}
	p.resolver = NewResolver(cfg.RecordType, store)

	p.logger(ctx).Info().Ctx(ctx).
		Str("record_type", cfg.RecordType).
		Str("version", def.Version).
		Bool("pass_view", def.PassView).
		Bool("pass_context", def.PassContext).
		Msg("session initialized")

	return nil
}
