// Package kv implements the opaque key-value JSONB table the coordinator
// persists engine and lobby state under.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a Postgres-backed key-value table: key TEXT primary key,
// value JSONB, updated_at refreshed on every write.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened *sql.DB. Callers own the connection
// lifecycle; Store never closes it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the kv_store table if it does not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Put upserts the raw JSON value under key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

// Get returns the raw JSON value for key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

// KeysWithPrefix lists every key beginning with prefix, for the stale-
// game sweeper's scan of game:* entries.
func (s *Store) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv_store WHERE key LIKE $1 ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
