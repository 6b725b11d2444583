package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bordumb/RadicleApp/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	compressed INTEGER NOT NULL DEFAULT 0,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

type row struct {
	Value      []byte `db:"value"`
	Compressed bool   `db:"compressed"`
	ExpiresAt  int64  `db:"expires_at"`
}

// SQLiteStore persists cache entries across restarts.
type SQLiteStore struct {
	pool *db.Pool
}

// NewSQLiteStore creates the cache schema on pool.
func NewSQLiteStore(ctx context.Context, pool *db.Pool) (*SQLiteStore, error) {
	if _, err := pool.Writer().ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteStore{pool: pool}, nil
}

// get returns the stored row for key, or nil when missing or expired.
func (s *SQLiteStore) get(ctx context.Context, key string, now time.Time) (*row, error) {
	var r row
	err := s.pool.Reader().GetContext(ctx, &r,
		`SELECT value, compressed, expires_at FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, now.UnixMilli())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	return &r, nil
}

func (s *SQLiteStore) put(ctx context.Context, key string, r row) error {
	_, err := s.pool.Writer().ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, compressed, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, compressed = excluded.compressed, expires_at = excluded.expires_at`,
		key, r.Value, r.Compressed, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.pool.Writer().ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return res.RowsAffected()
}
