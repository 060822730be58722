package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/opsdeck/pkg/storage"
	"github.com/papercomputeco/opsdeck/pkg/storage/inmemory"
)

// MockStorageDriver wraps the in-memory driver and can be told to fail.
type MockStorageDriver struct {
	*inmemory.Driver

	mu sync.Mutex

	// Puts counts calls to Put, including failed ones.
	Puts int

	// FailPut causes Put to return an error.
	FailPut bool
}

// NewMockStorageDriver creates a new mock storage driver.
func NewMockStorageDriver() *MockStorageDriver {
	return &MockStorageDriver{Driver: inmemory.NewDriver()}
}

func (m *MockStorageDriver) Put(ctx context.Context, rec *storage.Record) error {
	m.mu.Lock()
	m.Puts++
	fail := m.FailPut
	m.mu.Unlock()

	if fail {
		return errors.New("mock put failure")
	}
	return m.Driver.Put(ctx, rec)
}

// PutCount returns the number of Put calls so far.
func (m *MockStorageDriver) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Puts
}
