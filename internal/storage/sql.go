package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure Go sqlite driver (no CGO required)

	"github.com/rshade/bulkops/internal/entity"
	"github.com/rshade/bulkops/internal/logging"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and base FS in package state.
var migrationMutex sync.Mutex

// SQLOptions configures OpenSQL.
type SQLOptions struct {
	Driver string
	DSN    string
	// RecordTypes are registered up front in addition to the types found in the database.
	RecordTypes []string
}

// SQLDatabase stores records in sqlite or postgres.
type SQLDatabase struct {
	typeSet

	db     *sqlx.DB
	driver string
}

// OpenSQL connects, runs migrations and loads the set of known record types.
func OpenSQL(ctx context.Context, opts SQLOptions) (*SQLDatabase, error) {
	if opts.DSN == "" {
		return nil, errors.New("database DSN cannot be empty")
	}

	dsn := opts.DSN
	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	s := &SQLDatabase{db: db, driver: opts.Driver}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, t := range opts.RecordTypes {
		s.add(t)
	}
	var existing []string
	if err := db.SelectContext(ctx, &existing, `SELECT DISTINCT record_type FROM records`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load record types: %w", err)
	}
	for _, t := range existing {
		s.add(t)
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "storage").
		Str("driver", opts.Driver).
		Int("record_types", len(s.list())).
		Msg("sql database opened")

	return s, nil
}

func (s *SQLDatabase) runMigrations() error {
	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.driver); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(s.db.DB, "migrations/"+s.driver); err != nil {
		return fmt.Errorf("failed to apply %s migrations: %w", s.driver, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

// DB exposes the connection for query executors.
func (s *SQLDatabase) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database driver name.
func (s *SQLDatabase) Driver() string {
	return s.driver
}

// RegisterType makes recordType known even before any record of it is saved.
func (s *SQLDatabase) RegisterType(recordType string) {
	s.add(recordType)
}

// Storage returns the handle for recordType.
func (s *SQLDatabase) Storage(recordType string) (Storage, error) {
	if !s.has(recordType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, recordType)
	}
	return &sqlStorage{db: s, recordType: recordType}, nil
}

// RecordTypes lists the known record types.
func (s *SQLDatabase) RecordTypes() []string {
	return s.list()
}

type revisionRow struct {
	RevisionID      int64  `db:"revision_id"`
	RecordType      string `db:"record_type"`
	ID              string `db:"id"`
	UUID            string `db:"uuid"`
	Bundle          string `db:"bundle"`
	DefaultLangcode string `db:"default_langcode"`
}

type translationRow struct {
	RevisionID int64  `db:"revision_id"`
	Langcode   string `db:"langcode"`
	Label      string `db:"label"`
	Status     string `db:"status"`
	Fields     string `db:"fields"`
}

const selectRevisions = `
	SELECT v.revision_id, v.record_type, v.id, r.uuid, v.bundle, v.default_langcode
	FROM record_revisions v
	JOIN records r ON r.record_type = v.record_type AND r.id = v.id
`

// LoadRevisions loads several revisions of recordType at once, keyed by revision ID.
// Missing revisions are absent from the result.
func (s *SQLDatabase) LoadRevisions(
	ctx context.Context,
	recordType string,
	revisionIDs []int64,
) (map[int64]*entity.Record, error) {
	out := make(map[int64]*entity.Record, len(revisionIDs))
	if len(revisionIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(selectRevisions+` WHERE v.record_type = ? AND v.revision_id IN (?)`,
		recordType, revisionIDs)
	if err != nil {
		return nil, fmt.Errorf("building revision query: %w", err)
	}
	var revs []revisionRow
	if err = s.db.SelectContext(ctx, &revs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	if len(revs) == 0 {
		return out, nil
	}

	query, args, err = sqlx.In(`
		SELECT revision_id, langcode, label, status, fields
		FROM record_translations
		WHERE revision_id IN (?)
		ORDER BY revision_id, langcode`, revisionIDs)
	if err != nil {
		return nil, fmt.Errorf("building translation query: %w", err)
	}
	var translations []translationRow
	if err = s.db.SelectContext(ctx, &translations, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}

	for _, rev := range revs {
		out[rev.RevisionID] = &entity.Record{
			Type:            rev.RecordType,
			ID:              rev.ID,
			RevisionID:      rev.RevisionID,
			UUID:            rev.UUID,
			Bundle:          rev.Bundle,
			DefaultLangcode: rev.DefaultLangcode,
			Translations:    make(map[string]*entity.Translation),
		}
	}
	for _, tr := range translations {
		rec, ok := out[tr.RevisionID]
		if !ok {
			continue
		}
		t := &entity.Translation{Langcode: tr.Langcode, Label: tr.Label, Status: tr.Status}
		if tr.Fields != "" && tr.Fields != "{}" {
			if err := json.Unmarshal([]byte(tr.Fields), &t.Fields); err != nil {
				return nil, fmt.Errorf("decoding fields of revision %d: %w", tr.RevisionID, err)
			}
		}
		rec.Translations[tr.Langcode] = t
	}

	return out, nil
}

type sqlStorage struct {
	db         *SQLDatabase
	recordType string
}

func (s *sqlStorage) RecordType() string { return s.recordType }

func (s *sqlStorage) Load(ctx context.Context, id string) (*entity.Record, error) {
	var revisionID int64
	err := s.db.db.GetContext(ctx, &revisionID,
		s.db.db.Rebind(`SELECT revision_id FROM records WHERE record_type = ? AND id = ?`),
		s.recordType, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, s.recordType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", s.recordType, id, err)
	}
	return s.LoadRevision(ctx, revisionID)
}

func (s *sqlStorage) LoadRevision(ctx context.Context, revisionID int64) (*entity.Record, error) {
	recs, err := s.db.LoadRevisions(ctx, s.recordType, []int64{revisionID})
	if err != nil {
		return nil, err
	}
	rec, ok := recs[revisionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s revision %d", ErrNotFound, s.recordType, revisionID)
	}
	return rec, nil
}

func (s *sqlStorage) Save(ctx context.Context, r *entity.Record) error {
	if err := validateRecord(r, s.recordType); err != nil {
		return err
	}
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}

	tx, err := s.db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var revisionID int64
	err = tx.GetContext(ctx, &revisionID, tx.Rebind(`
		INSERT INTO record_revisions (record_type, id, bundle, default_langcode)
		VALUES (?, ?, ?, ?)
		RETURNING revision_id`),
		r.Type, r.ID, r.Bundle, r.DefaultLangcode)
	if err != nil {
		return fmt.Errorf("failed to insert revision: %w", err)
	}

	insertTranslation := tx.Rebind(`
		INSERT INTO record_translations (revision_id, langcode, label, status, fields)
		VALUES (?, ?, ?, ?, ?)`)
	for _, code := range r.Languages() {
		t := r.Translations[code]
		fields := []byte("{}")
		if len(t.Fields) > 0 {
			if fields, err = json.Marshal(t.Fields); err != nil {
				return fmt.Errorf("encoding fields of %s: %w", code, err)
			}
		}
		if _, err = tx.ExecContext(ctx, insertTranslation, revisionID, code, t.Label, t.Status, string(fields)); err != nil {
			return fmt.Errorf("failed to insert %s translation: %w", code, err)
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO records (record_type, id, uuid, bundle, default_langcode, revision_id, created_revision)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_type, id) DO UPDATE SET
			uuid = excluded.uuid,
			bundle = excluded.bundle,
			default_langcode = excluded.default_langcode,
			revision_id = excluded.revision_id`),
		r.Type, r.ID, r.UUID, r.Bundle, r.DefaultLangcode, revisionID, revisionID)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}

	r.RevisionID = revisionID
	s.db.add(r.Type)
	return nil
}
