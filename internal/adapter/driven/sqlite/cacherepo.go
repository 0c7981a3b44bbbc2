package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheStore = (*CacheRepo)(nil)

// CacheRepo is the SQLite implementation of the CacheStore port interface.
type CacheRepo struct {
	db *DB
}

// NewCacheRepo creates a new CacheRepo backed by the given DB.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// Get returns the entry stored under key, or (nil, nil) on a miss.
func (r *CacheRepo) Get(ctx context.Context, key model.CacheKey) (*model.CacheEntry, error) {
	const query = `SELECT payload, stored_at FROM resource_cache WHERE cache_key = ?`

	var (
		payload  []byte
		storedAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, key.String()).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry %s: %w", key, err)
	}

	entry := &model.CacheEntry{Key: key, Payload: payload}
	entry.StoredAt, err = parseTime(storedAt)
	if err != nil {
		return nil, fmt.Errorf("parse stored_at: %w", err)
	}

	return entry, nil
}

// Put writes entry in a single transaction. For an immutable key every other
// version of the same resource is removed, so a newer version supersedes the
// older one instead of accumulating beside it.
func (r *CacheRepo) Put(ctx context.Context, entry model.CacheEntry) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache put: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if entry.Key.Immutable() {
		const supersede = `DELETE FROM resource_cache WHERE kind = ? AND resource = ? AND version != ?`
		if _, err := tx.ExecContext(ctx, supersede,
			string(entry.Key.Kind), entry.Key.Resource, entry.Key.Version,
		); err != nil {
			return fmt.Errorf("supersede cache entries for %s: %w", entry.Key, err)
		}
	}

	const upsert = `
		INSERT INTO resource_cache (cache_key, kind, resource, version, payload, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at
	`
	if _, err := tx.ExecContext(ctx, upsert,
		entry.Key.String(), string(entry.Key.Kind), entry.Key.Resource, entry.Key.Version,
		entry.Payload, formatTime(entry.StoredAt),
	); err != nil {
		return fmt.Errorf("put cache entry %s: %w", entry.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache put %s: %w", entry.Key, err)
	}

	return nil
}

// DeletePrefix removes every entry whose key starts with prefix and returns
// the number of entries removed.
func (r *CacheRepo) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	const query = `DELETE FROM resource_cache WHERE substr(cache_key, 1, ?) = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("delete cache entries with prefix %q: %w", prefix, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cache entries with prefix %q: %w", prefix, err)
	}

	return n, nil
}

// Purge removes every cache entry.
func (r *CacheRepo) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.Writer.ExecContext(ctx, `DELETE FROM resource_cache`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}

	return n, nil
}

// Stats returns entry counts per kind and the total payload size.
func (r *CacheRepo) Stats(ctx context.Context) (model.CacheStats, error) {
	const query = `
		SELECT kind, COUNT(*), COALESCE(SUM(length(payload)), 0)
		FROM resource_cache
		GROUP BY kind
		ORDER BY kind
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return model.CacheStats{}, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()

	stats := model.CacheStats{ByKind: map[model.CacheKind]int{}}
	for rows.Next() {
		var (
			kind  string
			count int
			size  int64
		)
		if err := rows.Scan(&kind, &count, &size); err != nil {
			return model.CacheStats{}, fmt.Errorf("scan cache stats: %w", err)
		}
		stats.ByKind[model.CacheKind(strings.TrimSpace(kind))] = count
		stats.Entries += count
		stats.TotalBytes += size
	}

	if err := rows.Err(); err != nil {
		return model.CacheStats{}, fmt.Errorf("iterate cache stats: %w", err)
	}

	return stats, nil
}
