package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
)

// RunStore appends audit rows to etl_job_runs. Rows are never updated.
type RunStore struct {
	pool   dbPool
	logger *zap.Logger
}

// NewRunStore builds a run store on a live pool.
func NewRunStore(pool *pgxpool.Pool, logger *zap.Logger) *RunStore {
	return NewRunStoreWithPool(pool, logger)
}

// NewRunStoreWithPool builds a run store on any pool implementation.
func NewRunStoreWithPool(pool dbPool, logger *zap.Logger) *RunStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunStore{pool: pool, logger: logger}
}

const recordRunSQL = `
INSERT INTO etl_job_runs
	(id, job_name, status, rows_in, rows_upserted, rows_skipped, rows_errored, detail, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Record appends one run row.
func (s *RunStore) Record(ctx context.Context, run queue.Run) error {
	_, err := s.pool.Exec(ctx, recordRunSQL,
		run.ID, run.JobName, run.Status,
		run.RowsIn, run.RowsUpserted, run.RowsSkipped, run.RowsErrored,
		run.Detail, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.JobName, err)
	}
	return nil
}

const recentRunsSQL = `
SELECT id, job_name, status, rows_in, rows_upserted, rows_skipped, rows_errored, detail, started_at, finished_at
FROM etl_job_runs
ORDER BY started_at DESC
LIMIT $1`

// Recent lists the latest runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]queue.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, recentRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []queue.Run
	for rows.Next() {
		var run queue.Run
		if err := rows.Scan(
			&run.ID, &run.JobName, &run.Status,
			&run.RowsIn, &run.RowsUpserted, &run.RowsSkipped, &run.RowsErrored,
			&run.Detail, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
