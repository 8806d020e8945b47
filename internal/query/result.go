package query

import (
	"context"

	"github.com/rshade/bulkops/internal/entity"
)

// Executor runs queries against a record source.
type Executor interface {
	// Execute returns the rows of q, honoring limit, offset and ID restriction.
	Execute(ctx context.Context, q Query) (*Result, error)

	// Count returns the number of rows q matches, ignoring limit and offset.
	Count(ctx context.Context, q Query) (int, error)
}

// LanguageField returns the per-row value name carrying the row's langcode.
func LanguageField(recordType string) string {
	return recordType + "_langcode"
}

// Row is one query result row: a record translation plus its raw values.
type Row struct {
	// Entity is the current revision of the row's record, in its default language.
	Entity *entity.Record
	Values map[string]string
}

// Value returns a raw row value.
func (r Row) Value(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Result is an executed query: the handle operations receive when they ask
// for full rows.
type Result struct {
	Query Query
	View  View
	Rows  []Row
}

// IDs returns the distinct entity IDs of the rows, in row order.
func (r *Result) IDs() []string {
	seen := make(map[string]bool, len(r.Rows))
	var ids []string
	for _, row := range r.Rows {
		if row.Entity == nil || seen[row.Entity.ID] {
			continue
		}
		seen[row.Entity.ID] = true
		ids = append(ids, row.Entity.ID)
	}
	return ids
}

// RowsFor returns the rows belonging to the entity with the given ID.
func (r *Result) RowsFor(id string) []Row {
	var rows []Row
	for _, row := range r.Rows {
		if row.Entity != nil && row.Entity.ID == id {
			rows = append(rows, row)
		}
	}
	return rows
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

func rowValues(rec *entity.Record, t *entity.Translation) map[string]string {
	values := map[string]string{
		"id":                          rec.ID,
		"uuid":                        rec.UUID,
		FieldBundle:                   rec.Bundle,
		FieldLabel:                    t.Label,
		FieldStatus:                   t.Status,
		LanguageField(rec.Type):       t.Langcode,
		rec.Type + "_default_langcode": rec.DefaultLangcode,
	}
	return values
}
