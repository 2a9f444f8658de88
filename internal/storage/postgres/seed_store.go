package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
)

// SeedStore reads the discovery seed tables.
type SeedStore struct {
	pool   dbPool
	logger *zap.Logger
}

// NewSeedStore builds a seed store on a live pool.
func NewSeedStore(pool *pgxpool.Pool, logger *zap.Logger) *SeedStore {
	return NewSeedStoreWithPool(pool, logger)
}

// NewSeedStoreWithPool builds a seed store on any pool implementation.
func NewSeedStoreWithPool(pool dbPool, logger *zap.Logger) *SeedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedStore{pool: pool, logger: logger}
}

const categorySeedsSQL = `
SELECT id, source, category, priority, enabled
FROM crawl_category_seeds
ORDER BY priority ASC, id ASC`

// CategorySeeds lists every category seed, enabled or not; the planner
// filters.
func (s *SeedStore) CategorySeeds(ctx context.Context) ([]queue.CategorySeed, error) {
	rows, err := s.pool.Query(ctx, categorySeedsSQL)
	if err != nil {
		return nil, fmt.Errorf("list category seeds: %w", err)
	}
	defer rows.Close()

	var seeds []queue.CategorySeed
	for rows.Next() {
		var seed queue.CategorySeed
		if err := rows.Scan(&seed.ID, &seed.Source, &seed.Category, &seed.Priority, &seed.Enabled); err != nil {
			return nil, fmt.Errorf("scan category seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

const pageSeedsSQL = `
SELECT id, source, url_template, first_page, last_page, priority, enabled
FROM crawl_page_seeds
ORDER BY priority ASC, id ASC`

// PageSeeds lists every page-range seed.
func (s *SeedStore) PageSeeds(ctx context.Context) ([]queue.PageSeed, error) {
	rows, err := s.pool.Query(ctx, pageSeedsSQL)
	if err != nil {
		return nil, fmt.Errorf("list page seeds: %w", err)
	}
	defer rows.Close()

	var seeds []queue.PageSeed
	for rows.Next() {
		var seed queue.PageSeed
		if err := rows.Scan(&seed.ID, &seed.Source, &seed.URLTemplate, &seed.FirstPage, &seed.LastPage, &seed.Priority, &seed.Enabled); err != nil {
			return nil, fmt.Errorf("scan page seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}
