// Package fetch defines the raw-page fetching contracts the crawl worker
// runs on.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// Request is one page to fetch.
type Request struct {
	URL     string
	Headers http.Header
}

// Response is a fetched page.
type Response struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Title        string
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, request Request) (Response, error)
}

// Detector decides whether a probe response needs a rendered re-fetch.
type Detector interface {
	ShouldPromote(resp Response) bool
}
