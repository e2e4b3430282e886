package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);`

// SQLiteStore persists session entries in a local SQLite file. Each entry
// is one row written by a single UPSERT.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path. The special
// path ":memory:" keeps the database in memory.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key Key) (Entry, error) {
	var (
		value     string
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT value, fetched_at FROM session_entries WHERE key = ?", key.String(),
	).Scan(&value, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrCacheMiss
		}
		StoreErrors.WithLabelValues("load").Inc()
		return Entry{}, fmt.Errorf("sqlite select: %w", err)
	}

	entry := Entry{Value: []byte(value), FetchedAt: fetchedAt}
	if err := entry.Validate(); err != nil {
		StoreErrors.WithLabelValues("load").Inc()
		return Entry{}, err
	}
	return entry, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, key Key, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	value := string(entry.Value)
	if value == "" {
		value = "null"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_entries (key, value, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			fetched_at = excluded.fetched_at`,
		key.String(), value, entry.FetchedAt,
	)
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("sqlite upsert: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key Key) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_entries WHERE key = ?", key.String()); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
