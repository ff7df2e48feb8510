package catalog

import (
	"context"
	"fmt"
)

// Session owns the in-memory copy of the catalog for one run. Records are
// mutated in place through Record(i) and only reach storage through Flush, so
// every write is an explicit call site.
type Session struct {
	store   Store
	records []Record
	flushes int
}

// Open reads the full catalog from store.
func Open(ctx context.Context, store Store) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("catalog store required")
	}
	records, err := store.ReadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{store: store, records: records}, nil
}

// Len returns the number of records.
func (s *Session) Len() int {
	return len(s.records)
}

// Record returns a pointer to the i-th record for in-place mutation.
func (s *Session) Record(i int) *Record {
	return &s.records[i]
}

// Records exposes the working slice. Callers must not retain it past the run.
func (s *Session) Records() []Record {
	return s.records
}

// Find returns the first record whose id equals key.
func (s *Session) Find(key Key) (*Record, bool) {
	for i := range s.records {
		if s.records[i].ID.Equal(key) {
			return &s.records[i], true
		}
	}
	return nil, false
}

// Flush writes the whole catalog back to storage.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.store.WriteCatalog(ctx, s.records); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	s.flushes++
	return nil
}

// Flushes reports how many successful writes this session has made.
func (s *Session) Flushes() int {
	return s.flushes
}
