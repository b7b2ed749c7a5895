package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gameforge/pkg/cache"
)

// GetCacheEntry returns the entry for fingerprint or cache.ErrMiss.
func (s *Store) GetCacheEntry(ctx context.Context, fingerprint string) (*cache.Entry, error) {
	var response, model string
	err := s.db.QueryRowContext(ctx, `
		SELECT response, model FROM llm_cache WHERE prompt_hash = ?
	`, fingerprint).Scan(&response, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &cache.Entry{
		Fingerprint: fingerprint,
		Response:    json.RawMessage(response),
		Model:       model,
	}, nil
}

// PutCacheEntry writes entry unless the fingerprint already exists.
func (s *Store) PutCacheEntry(ctx context.Context, entry cache.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO llm_cache (prompt_hash, response, model) VALUES (?, ?, ?)
	`, entry.Fingerprint, string(entry.Response), entry.Model)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// CacheSize returns the number of cached entries.
func (s *Store) CacheSize(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM llm_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
