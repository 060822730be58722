// Package storage persists the history of completed chat responses.
package storage

import (
	"context"
	"time"
)

// Record is one stored response.
type Record struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id,omitempty"`
	Prompt   string `json:"prompt"`

	// Text is the full markdown text received, possibly partial when Status
	// is not "done".
	Text string `json:"text"`

	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Fallback bool   `json:"fallback"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ListOptions filters List results.
type ListOptions struct {
	// ClientID restricts results to one client when set.
	ClientID string

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

// Driver defines the interface for persisting and retrieving records in a
// storage backend.
type Driver interface {
	// Put stores a record, replacing any record with the same ID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID. It returns NotFoundError when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
