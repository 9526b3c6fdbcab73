package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/style-tagger/internal/cache"
)

// CacheStore is the persistent tier of the prediction cache, backed by
// the prediction_cache table.
type CacheStore struct {
	db *DB
}

var _ cache.Store = (*CacheStore)(nil)

// CacheStore returns the database-backed prediction cache tier.
func (db *DB) CacheStore() *CacheStore {
	return &CacheStore{db: db}
}

// GetEntry looks up a cached classification by key.
func (s *CacheStore) GetEntry(ctx context.Context, key string) (cache.Entry, bool, error) {
	var entry cache.Entry
	err := s.db.pool.QueryRow(ctx,
		`SELECT key, tag, confidence, source, created_at
		 FROM prediction_cache WHERE key = $1`,
		key,
	).Scan(&entry.Key, &entry.Tag, &entry.Confidence, &entry.Source, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cache.Entry{}, false, nil
		}
		return cache.Entry{}, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry, true, nil
}

// PutEntry upserts a cached classification.
func (s *CacheStore) PutEntry(ctx context.Context, entry cache.Entry) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO prediction_cache (key, tag, confidence, source, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE
		 SET tag = $2, confidence = $3, source = $4, created_at = $5`,
		entry.Key, entry.Tag, entry.Confidence, entry.Source, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes a cached classification.
func (s *CacheStore) DeleteEntry(ctx context.Context, key string) error {
	_, err := s.db.pool.Exec(ctx,
		`DELETE FROM prediction_cache WHERE key = $1`, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PurgeExpiredEntries deletes cache entries older than the given
// interval and reports how many were removed.
func (s *CacheStore) PurgeExpiredEntries(ctx context.Context, olderThan string) (int64, error) {
	result, err := s.db.pool.Exec(ctx,
		`DELETE FROM prediction_cache WHERE created_at < NOW() - $1::interval`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}
	return result.RowsAffected(), nil
}
