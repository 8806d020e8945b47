package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rshade/bulkops/internal/entity"
)

type recordKey struct {
	recordType string
	id         string
}

// MemoryDatabase keeps every revision of every record in memory.
// Thread-safe for concurrent access.
type MemoryDatabase struct {
	typeSet

	mu           sync.RWMutex
	current      map[recordKey]*entity.Record
	created      map[recordKey]int64
	revisions    map[int64]*entity.Record
	nextRevision int64
}

// NewMemoryDatabase creates an empty database that knows the given record types.
func NewMemoryDatabase(recordTypes ...string) *MemoryDatabase {
	db := &MemoryDatabase{
		current:   make(map[recordKey]*entity.Record),
		created:   make(map[recordKey]int64),
		revisions: make(map[int64]*entity.Record),
	}
	for _, t := range recordTypes {
		db.add(t)
	}
	return db
}

// RegisterType makes recordType known even before any record of it is saved.
func (db *MemoryDatabase) RegisterType(recordType string) {
	db.add(recordType)
}

// Storage returns the handle for recordType.
func (db *MemoryDatabase) Storage(recordType string) (Storage, error) {
	if !db.has(recordType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, recordType)
	}
	return &memoryStorage{db: db, recordType: recordType}, nil
}

// RecordTypes lists the known record types.
func (db *MemoryDatabase) RecordTypes() []string {
	return db.list()
}

// Current returns copies of the current revision of every record of
// recordType, in creation order.
func (db *MemoryDatabase) Current(recordType string) []*entity.Record {
	db.mu.RLock()
	defer db.mu.RUnlock()

	type ordered struct {
		rec     *entity.Record
		created int64
	}
	var items []ordered
	for key, rec := range db.current {
		if key.recordType != recordType {
			continue
		}
		items = append(items, ordered{rec: rec, created: db.created[key]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].created < items[j].created })

	out := make([]*entity.Record, len(items))
	for i, it := range items {
		out[i] = it.rec.Clone()
	}
	return out
}

func (db *MemoryDatabase) save(r *entity.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextRevision++
	r.RevisionID = db.nextRevision
	if r.UUID == "" {
		r.UUID = uuid.NewString()
	}

	key := recordKey{recordType: r.Type, id: r.ID}
	if _, ok := db.created[key]; !ok {
		db.created[key] = r.RevisionID
	}
	stored := r.Clone()
	db.revisions[r.RevisionID] = stored
	db.current[key] = stored
}

type memoryStorage struct {
	db         *MemoryDatabase
	recordType string
}

func (s *memoryStorage) RecordType() string { return s.recordType }

func (s *memoryStorage) Load(_ context.Context, id string) (*entity.Record, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rec, ok := s.db.current[recordKey{recordType: s.recordType, id: id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, s.recordType, id)
	}
	return rec.Clone(), nil
}

func (s *memoryStorage) LoadRevision(_ context.Context, revisionID int64) (*entity.Record, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rec, ok := s.db.revisions[revisionID]
	if !ok || rec.Type != s.recordType {
		return nil, fmt.Errorf("%w: %s revision %d", ErrNotFound, s.recordType, revisionID)
	}
	return rec.Clone(), nil
}

func (s *memoryStorage) Save(_ context.Context, r *entity.Record) error {
	if err := validateRecord(r, s.recordType); err != nil {
		return err
	}
	s.db.save(r)
	return nil
}
