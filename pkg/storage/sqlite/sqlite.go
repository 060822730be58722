// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/opsdeck/pkg/storage"
)

// Driver implements storage.Driver on a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (creating if needed) the database at dbPath and migrates
// the schema. dbPath can be a file path or ":memory:".
func NewDriver(dbPath string) (*Driver, error) {
	// github.com/mattn/go-sqlite3 registers itself as "sqlite3"
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A ":memory:" database exists per connection.
	db.SetMaxOpenConns(1)

	d := &Driver{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		fallback INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_responses_client_created ON responses(client_id, created_at);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Put stores a record, replacing any record with the same ID.
func (d *Driver) Put(ctx context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	if rec.ID == "" {
		return errors.New("cannot store record without id")
	}

	query := `INSERT OR REPLACE INTO responses
		(id, client_id, prompt, text, status, error, fallback, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		rec.ID, rec.ClientID, rec.Prompt, rec.Text, rec.Status, rec.Error,
		rec.Fallback, toUnix(rec.CreatedAt), toUnix(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	query := `SELECT id, client_id, prompt, text, status, error, fallback, created_at, completed_at
		FROM responses WHERE id = ?`

	rec, err := scanRecord(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// List returns records newest first, ties broken by ID.
func (d *Driver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT id, client_id, prompt, text, status, error, fallback, created_at, completed_at
		FROM responses`)
	if opts.ClientID != "" {
		b.WriteString(` WHERE client_id = ?`)
		args = append(args, opts.ClientID)
	}
	b.WriteString(` ORDER BY created_at DESC, id ASC`)
	if opts.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := d.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, rec)
	}

	return result, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.Record, error) {
	var (
		rec                storage.Record
		created, completed int64
	)

	err := row.Scan(
		&rec.ID, &rec.ClientID, &rec.Prompt, &rec.Text, &rec.Status, &rec.Error,
		&rec.Fallback, &created, &completed,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = fromUnix(created)
	rec.CompletedAt = fromUnix(completed)
	return &rec, nil
}

// Timestamps are stored as Unix nanoseconds so they sort and round-trip
// exactly.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
