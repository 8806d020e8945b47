package query

import (
	"context"

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/storage"
)

// MemoryExecutor runs queries over a storage.MemoryDatabase.
type MemoryExecutor struct {
	db    *storage.MemoryDatabase
	views *Views
}

var _ Executor = (*MemoryExecutor)(nil)

// NewMemoryExecutor creates an executor over db using the given view registry.
func NewMemoryExecutor(db *storage.MemoryDatabase, views *Views) *MemoryExecutor {
	return &MemoryExecutor{db: db, views: views}
}

// Execute implements Executor.
func (e *MemoryExecutor) Execute(ctx context.Context, q Query) (*Result, error) {
	view, rows, err := e.match(ctx, q)
	if err != nil {
		return nil, err
	}

	start := min(q.Offset(), len(rows))
	end := len(rows)
	if q.Limit() > 0 {
		end = min(start+q.Limit(), len(rows))
	}

	return &Result{Query: q, View: view, Rows: rows[start:end]}, nil
}

// Count implements Executor.
func (e *MemoryExecutor) Count(ctx context.Context, q Query) (int, error) {
	_, rows, err := e.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (e *MemoryExecutor) match(ctx context.Context, q Query) (View, []Row, error) {
	view, err := e.views.Lookup(q.View())
	if err != nil {
		return View{}, nil, err
	}
	conds, err := view.Conditions(q)
	if err != nil {
		return View{}, nil, err
	}

	var allowed map[string]bool
	if ids, ok := q.IDs(); ok {
		allowed = make(map[string]bool, len(ids))
		for _, id := range ids {
			allowed[id] = true
		}
	}

	var rows []Row
	for _, rec := range e.db.Current(view.RecordType) {
		if err := ctx.Err(); err != nil {
			return View{}, nil, err
		}
		if allowed != nil && !allowed[rec.ID] {
			continue
		}
		for _, code := range rec.Languages() {
			t := rec.Translations[code]
			if !matches(rec, t, conds) {
				continue
			}
			rows = append(rows, Row{Entity: rec, Values: rowValues(rec, t)})
		}
	}
	return view, rows, nil
}

func matches(rec *entity.Record, t *entity.Translation, conds []Condition) bool {
	for _, c := range conds {
		var got string
		switch c.Field {
		case FieldBundle:
			got = rec.Bundle
		case FieldStatus:
			got = t.Status
		case FieldLangcode:
			got = t.Langcode
		case FieldLabel:
			got = t.Label
		}
		if got != c.Value {
			return false
		}
	}
	return true
}
