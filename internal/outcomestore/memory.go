package outcomestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory [Store] for tests and deployments without a
// database. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save stores a copy of the record, replacing any existing record with the
// same request ID. CreatedAt is preserved across replacements.
func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec.Outcome.RequestID == "" {
		return fmt.Errorf("outcomestore: record has no request id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if prev, ok := s.records[rec.Outcome.RequestID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.records[rec.Outcome.RequestID] = cp
	rec.CreatedAt = cp.CreatedAt
	return nil
}

// Get retrieves a record by request ID.
func (s *MemoryStore) Get(_ context.Context, requestID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, requestID)
	}
	cp := rec
	return &cp, nil
}

// List returns the most recent records, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	recs := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
