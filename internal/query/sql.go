package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/storage"
)

//nolint:gochecknoglobals // Immutable lookup table.
var sqlColumns = map[string]string{
	FieldBundle:   "r.bundle",
	FieldStatus:   "t.status",
	FieldLangcode: "t.langcode",
	FieldLabel:    "t.label",
}

// SQLExecutor runs queries against a storage.SQLDatabase.
type SQLExecutor struct {
	db    *storage.SQLDatabase
	views *Views
}

var _ Executor = (*SQLExecutor)(nil)

// NewSQLExecutor creates an executor over db using the given view registry.
func NewSQLExecutor(db *storage.SQLDatabase, views *Views) *SQLExecutor {
	return &SQLExecutor{db: db, views: views}
}

type rowRef struct {
	ID         string `db:"id"`
	RevisionID int64  `db:"revision_id"`
	Langcode   string `db:"langcode"`
}

// Execute implements Executor.
func (e *SQLExecutor) Execute(ctx context.Context, q Query) (*Result, error) {
	view, where, args, empty, err := e.build(q)
	if err != nil {
		return nil, err
	}
	result := &Result{Query: q, View: view}
	if empty {
		return result, nil
	}

	stmt := `SELECT r.id, r.revision_id, t.langcode
		FROM records r
		JOIN record_translations t ON t.revision_id = r.revision_id
		WHERE ` + where + `
		ORDER BY r.created_revision, t.langcode`
	stmt, args = e.page(stmt, args, q)

	stmt, args, err = sqlx.In(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("building query for view %s: %w", view.ID, err)
	}

	db := e.db.DB()
	var refs []rowRef
	if err = db.SelectContext(ctx, &refs, db.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("executing view %s: %w", view.ID, err)
	}

	revisionIDs := make([]int64, 0, len(refs))
	seen := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		if !seen[ref.RevisionID] {
			seen[ref.RevisionID] = true
			revisionIDs = append(revisionIDs, ref.RevisionID)
		}
	}
	records, err := e.db.LoadRevisions(ctx, view.RecordType, revisionIDs)
	if err != nil {
		return nil, err
	}

	result.Rows = make([]Row, 0, len(refs))
	for _, ref := range refs {
		rec, ok := records[ref.RevisionID]
		if !ok {
			continue
		}
		t, ok := rec.Translations[ref.Langcode]
		if !ok {
			continue
		}
		result.Rows = append(result.Rows, Row{Entity: rec, Values: rowValues(rec, t)})
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "query").
		Str("view", view.ID).
		Int("offset", q.Offset()).
		Int("limit", q.Limit()).
		Int("rows", len(result.Rows)).
		Msg("executed view")

	return result, nil
}

// Count implements Executor.
func (e *SQLExecutor) Count(ctx context.Context, q Query) (int, error) {
	view, where, args, empty, err := e.build(q)
	if err != nil {
		return 0, err
	}
	if empty {
		return 0, nil
	}

	stmt, args, err := sqlx.In(`SELECT COUNT(*)
		FROM records r
		JOIN record_translations t ON t.revision_id = r.revision_id
		WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("building count for view %s: %w", view.ID, err)
	}

	db := e.db.DB()
	var n int
	if err = db.GetContext(ctx, &n, db.Rebind(stmt), args...); err != nil {
		return 0, fmt.Errorf("counting view %s: %w", view.ID, err)
	}
	return n, nil
}

// build returns the WHERE clause for q. empty is true when the ID
// restriction excludes every row.
func (e *SQLExecutor) build(q Query) (View, string, []any, bool, error) {
	view, err := e.views.Lookup(q.View())
	if err != nil {
		return View{}, "", nil, false, err
	}
	conds, err := view.Conditions(q)
	if err != nil {
		return View{}, "", nil, false, err
	}

	clauses := []string{"r.record_type = ?"}
	args := []any{view.RecordType}
	for _, c := range conds {
		col, ok := sqlColumns[c.Field]
		if !ok {
			return View{}, "", nil, false, fmt.Errorf("%w: %s", ErrUnknownField, c.Field)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, c.Value)
	}

	if ids, ok := q.IDs(); ok {
		if len(ids) == 0 {
			return view, "", nil, true, nil
		}
		clauses = append(clauses, "r.id IN (?)")
		args = append(args, ids)
	}

	return view, strings.Join(clauses, " AND "), args, false, nil
}

func (e *SQLExecutor) page(stmt string, args []any, q Query) (string, []any) {
	switch {
	case q.Limit() > 0:
		stmt += " LIMIT ?"
		args = append(args, q.Limit())
	case q.Offset() > 0 && e.db.Driver() == storage.DriverSQLite:
		// sqlite requires a LIMIT before OFFSET.
		stmt += " LIMIT -1"
	}
	if q.Offset() > 0 {
		stmt += " OFFSET ?"
		args = append(args, q.Offset())
	}
	return stmt, args
}
