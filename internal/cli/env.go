package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/bulkops/internal/config"
	"github.com/rshade/bulkops/internal/operation"
	"github.com/rshade/bulkops/internal/operation/builtin"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

// environment bundles what commands need to touch records.
type environment struct {
	cfg      *config.Config
	db       *storage.SQLDatabase
	views    *query.Views
	executor query.Executor
	catalog  *operation.Catalog
}

// openEnvironment opens the configured database and builds the view registry
// and operation catalog. Every record type gets a default view named after it
// unless the configuration defines one with that ID.
func openEnvironment(ctx context.Context, cfg *config.Config, recordTypes ...string) (*environment, error) {
	db, err := storage.OpenSQL(ctx, storage.SQLOptions{
		Driver:      cfg.Store.Driver,
		DSN:         cfg.Store.DSN,
		RecordTypes: recordTypes,
	})
	if err != nil {
		return nil, err
	}

	views, err := query.NewViews(cfg.Views...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading views: %w", err)
	}
	for _, rt := range db.RecordTypes() {
		if _, lookupErr := views.Lookup(rt); errors.Is(lookupErr, query.ErrUnknownView) {
			if err = views.Register(query.DefaultView(rt)); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
	}

	catalog := operation.NewCatalog()
	if err = builtin.Register(catalog); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registering built-in operations: %w", err)
	}

	return &environment{
		cfg:      cfg,
		db:       db,
		views:    views,
		executor: query.NewSQLExecutor(db, views),
		catalog:  catalog,
	}, nil
}

// Close releases the database.
func (e *environment) Close() error {
	return e.db.Close()
}
