// Package inmemory provides a map-backed storage driver for tests and for
// running without a database.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/opsdeck/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards records
	mu sync.RWMutex

	// records maps record IDs to copies of the stored records
	records map[string]storage.Record
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]storage.Record),
	}
}

// Put stores a copy of rec.
func (s *Driver) Put(_ context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return errors.New("cannot store record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = *rec
	return nil
}

// Get retrieves a record by ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return &rec, nil
}

// List returns records newest first, ties broken by ID.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.ClientID != "" && rec.ClientID != opts.ClientID {
			continue
		}
		result = append(result, &rec)
	}

	slices.SortFunc(result, func(a, b *storage.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
