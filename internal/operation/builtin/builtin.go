// Package builtin provides the operations shipped with bulkops.
package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

// Operation IDs.
const (
	PublishID    = "publish"
	UnpublishID  = "unpublish"
	RelabelID    = "relabel"
	ExportRowsID = "export_rows"
)

const builtinVersion = "1.0.0"

// ErrNoStorage is returned by factories of operations that write records.
var ErrNoStorage = errors.New("operation requires a storage handle")

// Register adds every built-in operation to c.
func Register(c *operation.Catalog) error {
	defs := []struct {
		def     operation.Definition
		factory operation.Factory
	}{
		{
			def: operation.Definition{
				ID:          PublishID,
				Label:       "Published",
				Description: "Mark each translation as published.",
				Version:     builtinVersion,
				Writes:      []string{query.FieldStatus},
			},
			factory: newStatusFactory(entity.StatusPublished),
		},
		{
			def: operation.Definition{
				ID:          UnpublishID,
				Label:       "Unpublished",
				Description: "Mark each translation as unpublished.",
				Version:     builtinVersion,
				Writes:      []string{query.FieldStatus},
			},
			factory: newStatusFactory(entity.StatusUnpublished),
		},
		{
			def: operation.Definition{
				ID:            RelabelID,
				Label:         "Relabeled",
				Description:   "Add a prefix and suffix to each label.",
				Version:       builtinVersion,
				Writes:        []string{query.FieldLabel},
				DefaultConfig: map[string]any{"prefix": "", "suffix": ""},
			},
			factory: newRelabel,
		},
		{
			def: operation.Definition{
				ID:            ExportRowsID,
				Label:         "Exported",
				Description:   "Write the query rows of each entity as YAML documents.",
				Version:       builtinVersion,
				PassView:      true,
				PassContext:   true,
				DefaultConfig: map[string]any{"include_progress": true},
			},
			factory: newExportRows,
		},
	}

	for _, d := range defs {
		if err := c.Register(d.def, d.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog holding the built-in operations.
func NewCatalog() *operation.Catalog {
	c := operation.NewCatalog()
	if err := Register(c); err != nil {
		// definitions above are static
		panic(err)
	}
	return c
}

// statusOperation sets the publication status of the queued translations.
// It reports nothing, so callers fall back to the definition label.
type statusOperation struct {
	status string
	store  storage.Storage
}

func newStatusFactory(status string) operation.Factory {
	return func(_ map[string]any, deps operation.Deps) (operation.Operation, error) {
		if deps.Storage == nil {
			return nil, ErrNoStorage
		}
		return &statusOperation{status: status, store: deps.Storage}, nil
	}
}

func (o *statusOperation) ExecuteMultiple(ctx context.Context, entities []entity.Entity) ([]operation.Outcome, error) {
	log := logging.FromContext(ctx)
	for _, e := range entities {
		rec, ok := e.(*entity.Record)
		if !ok {
			return nil, fmt.Errorf("%s %s: unsupported entity %T", e.EntityType(), e.EntityID(), e)
		}
		if rec.Status() == o.status {
			continue
		}
		rec.SetStatus(o.status)
		if err := o.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("saving %s %s: %w", rec.Type, rec.ID, err)
		}
		log.Debug().Ctx(ctx).
			Str("component", "builtin").
			Str("entity_id", rec.ID).
			Str("langcode", rec.Language()).
			Str("status", o.status).
			Msg("status changed")
	}
	return nil, nil
}
