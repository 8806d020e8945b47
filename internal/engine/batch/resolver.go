package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/query"
	"github.com/rshade/bulkops/internal/storage"
)

// ResolutionMiss reports a source item that resolved to no entity. It is not
// fatal: the item is left out of the queue and counted as skipped.
type ResolutionMiss struct {
	// Item describes the source item, a descriptor or a row position.
	Item string
	Err  error
}

func (m *ResolutionMiss) Error() string {
	return fmt.Sprintf("unresolved %s: %v", m.Item, m.Err)
}

func (m *ResolutionMiss) Unwrap() error {
	return m.Err
}

// isMissCause reports whether err means "no such entity" rather than a fault.
func isMissCause(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, entity.ErrTranslationNotFound)
}

// Resolver turns source items into entities of one record type.
//
// Records are loaded once per step: descriptors naming the same record (or
// revision) resolve to projections of one loaded value, so edits made to one
// language are saved along with edits to another.
type Resolver struct {
	recordType string
	store      storage.Storage

	current   map[string]*entity.Record
	revisions map[int64]*entity.Record
}

// NewResolver creates a resolver loading from store.
func NewResolver(recordType string, store storage.Storage) *Resolver {
	r := &Resolver{recordType: recordType, store: store}
	r.Reset()
	return r
}

// Reset forgets the records loaded so far.
func (r *Resolver) Reset() {
	r.current = make(map[string]*entity.Record)
	r.revisions = make(map[int64]*entity.Record)
}

func (r *Resolver) load(ctx context.Context, id string) (*entity.Record, error) {
	if rec, ok := r.current[id]; ok {
		return rec, nil
	}
	rec, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	r.current[id] = rec
	return rec, nil
}

func (r *Resolver) loadRevision(ctx context.Context, revisionID int64) (*entity.Record, error) {
	if rec, ok := r.revisions[revisionID]; ok {
		return rec, nil
	}
	rec, err := r.store.LoadRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	r.revisions[revisionID] = rec
	return rec, nil
}

// ResolveDescriptor loads the entity a descriptor points at: the given
// revision when one is set, else the current revision. Translatable entities
// are projected into the descriptor language. There is no fallback to
// another language; a missing variant is a miss.
func (r *Resolver) ResolveDescriptor(ctx context.Context, d entity.Descriptor) (entity.Entity, error) {
	var (
		rec *entity.Record
		err error
	)
	if d.HasRevision() {
		rec, err = r.loadRevision(ctx, d.RevisionID)
		if err == nil && rec.ID != d.PrimaryID {
			err = fmt.Errorf("%w: revision %d belongs to %s %s",
				storage.ErrNotFound, d.RevisionID, r.recordType, rec.ID)
		}
	} else {
		rec, err = r.load(ctx, d.PrimaryID)
	}
	if err != nil {
		if isMissCause(err) {
			return nil, &ResolutionMiss{Item: d.String(), Err: err}
		}
		return nil, fmt.Errorf("loading %s: %w", d, err)
	}

	e, err := project(rec, d.Langcode)
	if err != nil {
		return nil, &ResolutionMiss{Item: d.String(), Err: err}
	}
	return e, nil
}

// ResolveRow returns the entity of a query row, projected into the row
// language when the entity is translatable and the row carries one.
func (r *Resolver) ResolveRow(row query.Row, index int) (entity.Entity, error) {
	item := fmt.Sprintf("row %d", index)
	if row.Entity == nil {
		return nil, &ResolutionMiss{Item: item, Err: storage.ErrNotFound}
	}
	lang, ok := row.Value(query.LanguageField(r.recordType))
	if !ok || lang == "" {
		return row.Entity, nil
	}
	e, err := project(row.Entity, lang)
	if err != nil {
		return nil, &ResolutionMiss{Item: fmt.Sprintf("%s (%s %s)", item, r.recordType, row.Entity.ID), Err: err}
	}
	return e, nil
}

func project(rec *entity.Record, langcode string) (entity.Entity, error) {
	var e entity.Entity = rec
	t, ok := e.(entity.Translatable)
	if !ok || !t.IsTranslatable() {
		return e, nil
	}
	return t.Translation(langcode)
}
