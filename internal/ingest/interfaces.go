package ingest

import (
	"context"
	"time"
)

// Requester performs one logical GET, including whatever retries the
// implementation applies, and returns the response body.
type Requester interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// RecordStore persists normalized records idempotently. Implementations must
// contain per-record failures: a bad record increments Errors and the batch
// continues.
type RecordStore interface {
	// Upsert writes records keyed by a single natural-key field. When force
	// is false, records whose stored document already matches are skipped.
	Upsert(ctx context.Context, table string, records []Record, key string, force bool) SaveResult

	// UpsertCompound writes records keyed by several fields together.
	UpsertCompound(ctx context.Context, table string, records []Record, keys []string, force bool) SaveResult
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
