// Package storage provides record-type scoped access to stored records.
//
// Two backends are available:
//   - MemoryDatabase: process-local, used by tests and dry runs
//   - SQLDatabase: sqlite (modernc, no CGO) or postgres (lib/pq), schema managed by goose
//
// Both implement Provider and hand out Storage handles bound to one record type.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rshade/bulkops/internal/entity"
)

// Common storage errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownRecordType = errors.New("unknown record type")
	ErrInvalidRecord     = errors.New("invalid record")
)

// Storage is the data-access handle for a single record type.
type Storage interface {
	// RecordType returns the type this handle is bound to.
	RecordType() string

	// Load returns the current revision of a record, or ErrNotFound.
	Load(ctx context.Context, id string) (*entity.Record, error)

	// LoadRevision returns a specific revision of a record of this type, or ErrNotFound.
	LoadRevision(ctx context.Context, revisionID int64) (*entity.Record, error)

	// Save stores r as a new revision and updates r.RevisionID (and r.UUID when empty).
	Save(ctx context.Context, r *entity.Record) error
}

// Provider yields Storage handles by record type.
type Provider interface {
	Storage(recordType string) (Storage, error)
	RecordTypes() []string
}

// typeSet tracks the record types a backend knows about.
type typeSet struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

func (s *typeSet) add(recordType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.types == nil {
		s.types = make(map[string]struct{})
	}
	s.types[recordType] = struct{}{}
}

func (s *typeSet) has(recordType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.types[recordType]
	return ok
}

func (s *typeSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func validateRecord(r *entity.Record, recordType string) error {
	if r == nil {
		return errors.Join(ErrInvalidRecord, errors.New("record is nil"))
	}
	if r.ID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("record id is empty"))
	}
	if r.Type != recordType {
		return errors.Join(ErrInvalidRecord, errors.New("record type "+r.Type+" does not match storage type "+recordType))
	}
	if len(r.Translations) == 0 {
		return errors.Join(ErrInvalidRecord, errors.New("record has no translations"))
	}
	return nil
}
