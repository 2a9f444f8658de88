package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
)

// PageStore persists fetched page snapshots in source_pages, deduplicated by
// content hash so re-fetching identical content is a no-op.
type PageStore struct {
	pool   dbPool
	logger *zap.Logger
}

// NewPageStore builds a page store on a live pool.
func NewPageStore(pool *pgxpool.Pool, logger *zap.Logger) *PageStore {
	return NewPageStoreWithPool(pool, logger)
}

// NewPageStoreWithPool builds a page store on any pool implementation.
func NewPageStoreWithPool(pool dbPool, logger *zap.Logger) *PageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageStore{pool: pool, logger: logger}
}

const upsertPageSQL = `
INSERT INTO source_pages (source, lang, url, title, content_hash, blob_uri, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source, content_hash)
DO UPDATE SET url = EXCLUDED.url, fetched_at = EXCLUDED.fetched_at
RETURNING (xmax = 0)`

// UpsertPage stores the snapshot. Returns true when the content is new for
// the source; an identical snapshot only refreshes url and fetched_at.
func (s *PageStore) UpsertPage(ctx context.Context, page queue.SourcePage) (bool, error) {
	if page.Lang == "" {
		page.Lang = queue.DefaultLang
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertPageSQL,
		page.Source, page.Lang, page.URL, page.Title, page.ContentHash, page.BlobURI, page.FetchedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert page %s: %w", page.URL, err)
	}
	return inserted, nil
}
