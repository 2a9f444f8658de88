package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
)

// QueueStore is the durable crawl queue on the crawl_queue table.
type QueueStore struct {
	pool   dbPool
	logger *zap.Logger
}

// NewQueueStore builds a queue store on a live pool.
func NewQueueStore(pool *pgxpool.Pool, logger *zap.Logger) *QueueStore {
	return NewQueueStoreWithPool(pool, logger)
}

// NewQueueStoreWithPool builds a queue store on any pool implementation.
func NewQueueStoreWithPool(pool dbPool, logger *zap.Logger) *QueueStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueStore{pool: pool, logger: logger}
}

const enqueueSQL = `
INSERT INTO crawl_queue (source, lang, url_or_title, priority, status, created_at)
VALUES ($1, $2, $3, $4, 'PENDING', now())
ON CONFLICT (source, url_or_title)
DO UPDATE SET priority = LEAST(crawl_queue.priority, EXCLUDED.priority)
RETURNING (xmax = 0)`

// Enqueue inserts the item, or keeps the more urgent priority when the
// (source, url_or_title) pair already exists. Returns true on fresh insert.
func (s *QueueStore) Enqueue(ctx context.Context, item queue.Item) (bool, error) {
	if item.Lang == "" {
		item.Lang = queue.DefaultLang
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, enqueueSQL, item.Source, item.Lang, item.URLOrTitle, item.Priority).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("enqueue %s/%s: %w", item.Source, item.URLOrTitle, err)
	}
	return inserted, nil
}

const claimSQL = `
SELECT id, source, lang, url_or_title, priority, status, created_at
FROM crawl_queue
WHERE status = 'PENDING' AND claimed_at IS NULL
ORDER BY priority ASC, id ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

// Claim takes up to limit pending items inside one transaction. Rows locked
// by a concurrent claimer are skipped, so parallel workers never collide.
func (s *QueueStore) Claim(ctx context.Context, limit int) ([]queue.Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, claimSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	var items []queue.Item
	for rows.Next() {
		var (
			item   queue.Item
			status string
		)
		if err := rows.Scan(&item.ID, &item.Source, &item.Lang, &item.URLOrTitle, &item.Priority, &status, &item.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.Status = queue.Status(status)
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending: %w", err)
	}
	if len(items) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if _, err := tx.Exec(ctx, `UPDATE crawl_queue SET claimed_at = now() WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("mark claimed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return items, nil
}

const resolveSQL = `
UPDATE crawl_queue
SET status = $2, detail = $3, resolved_at = now()
WHERE id = $1 AND status = 'PENDING'`

// Resolve moves one pending item to a terminal status. The guard on the
// current status makes terminal states immutable.
func (s *QueueStore) Resolve(ctx context.Context, id int64, status queue.Status, detail string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	tag, err := s.pool.Exec(ctx, resolveSQL, id, string(status), detail)
	if err != nil {
		return fmt.Errorf("resolve item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTerminal
	}
	return nil
}

const statsSQL = `
SELECT source, status, count(*)
FROM crawl_queue
GROUP BY source, status
ORDER BY source, status`

// Stats returns item counts grouped by source and status.
func (s *QueueStore) Stats(ctx context.Context) ([]queue.StatusCount, error) {
	rows, err := s.pool.Query(ctx, statsSQL)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var counts []queue.StatusCount
	for rows.Next() {
		var (
			c      queue.StatusCount
			status string
		)
		if err := rows.Scan(&c.Source, &status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		c.Status = queue.Status(status)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
