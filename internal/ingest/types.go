// Package ingest normalizes paginated open-API responses and drives the
// fetch-and-save pipeline the collectors run on.
package ingest

import "time"

// Record is one normalized row from a source API, keyed by canonical
// (lowerCamel) field names. Numeric values are json.Number so 64-bit
// identifiers survive the round trip.
type Record map[string]any

// Envelope is one page of records extracted from whatever wrapper shape the
// source API used.
type Envelope struct {
	Items      []Record
	TotalCount int
	PageNo     int
	PageSize   int
}

// SaveResult reports what an upsert batch did. Total is always
// Saved+Updated+Skipped+Errors.
type SaveResult struct {
	Total   int           `json:"total"`
	Saved   int           `json:"saved"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  int           `json:"errors"`
	Elapsed time.Duration `json:"elapsed"`
}

// Add folds another batch result into this one.
func (r *SaveResult) Add(other SaveResult) {
	r.Total += other.Total
	r.Saved += other.Saved
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors += other.Errors
	r.Elapsed += other.Elapsed
}

// CollectionResult is the outcome of collecting one domain (or one
// sub-resource of a domain).
type CollectionResult struct {
	Success     bool          `json:"success"`
	Data        []Record      `json:"-"`
	TotalCount  int           `json:"totalCount"`
	PageCount   int           `json:"pageCount"`
	CurrentPage int           `json:"currentPage"`
	Elapsed     time.Duration `json:"elapsed"`
	Err         error         `json:"-"`
	Error       string        `json:"error,omitempty"`
	Save        SaveResult    `json:"save"`
}

// CollectionSummary aggregates per-domain results for one orchestrator run.
type CollectionSummary struct {
	Success bool                        `json:"success"`
	Results map[string]CollectionResult `json:"results"`
}
