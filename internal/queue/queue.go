// Package queue defines the durable crawl-queue domain: items waiting to be
// fetched, their lifecycle, and the audit trail of worker runs.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue item. PENDING items may be
// claimed; the other states are terminal and never change again.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusFetched Status = "FETCHED"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusFetched, StatusError, StatusSkipped:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// ErrTerminal is returned when a transition targets an item that already
// reached a terminal state (or was claimed away concurrently).
var ErrTerminal = errors.New("queue item is not pending")

// DefaultLang is assumed when an item or page arrives without a language.
const DefaultLang = "ko"

// Item is one unit of crawl work. (Source, URLOrTitle) is unique; Priority
// orders claiming, lower values first.
type Item struct {
	ID         int64      `json:"id"`
	Source     string     `json:"source"`
	Lang       string     `json:"lang"`
	URLOrTitle string     `json:"urlOrTitle"`
	Priority   int        `json:"priority"`
	Status     Status     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ClaimedAt  *time.Time `json:"claimedAt,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// StatusCount is one row of queue statistics.
type StatusCount struct {
	Source string `json:"source"`
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// Run is one append-only audit row for a worker or collector invocation.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	JobName      string     `json:"jobName"`
	Status       string     `json:"status"`
	RowsIn       int        `json:"rowsIn"`
	RowsUpserted int        `json:"rowsUpserted"`
	RowsSkipped  int        `json:"rowsSkipped"`
	RowsErrored  int        `json:"rowsErrored"`
	Detail       string     `json:"detail,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Run statuses recorded in the audit log.
const (
	RunSuccess = "SUCCESS"
	RunPartial = "PARTIAL"
	RunFailed  = "FAILED"
)

// CategorySeed expands to one queue item naming a category to crawl.
type CategorySeed struct {
	ID       int64  `json:"id"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// PageSeed expands a URL template over a page range, one queue item per page.
type PageSeed struct {
	ID          int64  `json:"id"`
	Source      string `json:"source"`
	URLTemplate string `json:"urlTemplate"`
	FirstPage   int    `json:"firstPage"`
	LastPage    int    `json:"lastPage"`
	Priority    int    `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

// SourcePage is one fetched snapshot, deduplicated by content hash.
type SourcePage struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	Lang        string    `json:"lang"`
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	ContentHash string    `json:"contentHash"`
	BlobURI     string    `json:"blobUri,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Store is the durable crawl queue.
type Store interface {
	// Enqueue inserts the item or, when (source, urlOrTitle) already exists,
	// keeps the more urgent (lower) priority. Returns true when a new row
	// was created.
	Enqueue(ctx context.Context, item Item) (bool, error)

	// Claim atomically takes up to limit pending items for this worker,
	// most urgent first. Claimed items stay PENDING until resolved but are
	// invisible to concurrent claimers.
	Claim(ctx context.Context, limit int) ([]Item, error)

	// Resolve moves a pending item to a terminal status. ErrTerminal when
	// the item is not PENDING.
	Resolve(ctx context.Context, id int64, status Status, detail string) error

	// Stats returns item counts grouped by source and status.
	Stats(ctx context.Context) ([]StatusCount, error)
}

// RunStore appends and lists audit rows.
type RunStore interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// SeedStore lists the discovery seeds the planner expands.
type SeedStore interface {
	CategorySeeds(ctx context.Context) ([]CategorySeed, error)
	PageSeeds(ctx context.Context) ([]PageSeed, error)
}

// PageStore persists fetched page snapshots.
type PageStore interface {
	// UpsertPage inserts the page unless an identical-content snapshot for
	// the source already exists. Returns true on insert.
	UpsertPage(ctx context.Context, page SourcePage) (bool, error)
}
