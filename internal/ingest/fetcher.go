package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// PageFetcher walks a paginated endpoint sequentially, page 1 upward,
// pausing between pages so the portals' rate limits stay untouched.
type PageFetcher struct {
	exec      Requester
	logger    *zap.Logger
	pageDelay time.Duration
	sleep     func(time.Duration)
}

// NewPageFetcher builds a fetcher with the standard 300ms inter-page delay.
func NewPageFetcher(exec Requester, logger *zap.Logger) *PageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{
		exec:      exec,
		logger:    logger,
		pageDelay: 300 * time.Millisecond,
		sleep:     time.Sleep,
	}
}

// FetchAll fetches every page of baseURL with the given query params.
// pageSize sets numOfRows; maxPages (0 = unlimited) caps the walk. The run
// succeeds if at least one page succeeded; records from completed pages are
// always returned. Cancellation is honored at page boundaries.
func (f *PageFetcher) FetchAll(ctx context.Context, baseURL string, params url.Values, pageSize, maxPages int) CollectionResult {
	if pageSize <= 0 {
		pageSize = 100
	}
	start := time.Now()
	result := CollectionResult{}

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}
		if page > 1 {
			f.sleep(f.pageDelay)
		}
		if err := ctx.Err(); err != nil {
			result.Err = fmt.Errorf("collection canceled at page %d: %w", page, err)
			break
		}

		env, err := f.fetchPage(ctx, baseURL, params, page, pageSize)
		if err != nil {
			result.Err = err
			f.logger.Warn("page fetch failed",
				zap.String("url", RedactURL(baseURL)),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}

		result.PageCount++
		result.CurrentPage = page
		result.Data = append(result.Data, env.Items...)
		if env.TotalCount > result.TotalCount {
			result.TotalCount = env.TotalCount
		}

		if len(env.Items) == 0 {
			break
		}
		if page*pageSize >= result.TotalCount {
			break
		}
	}

	result.Success = result.PageCount > 0
	result.Elapsed = time.Since(start)
	if result.Err != nil {
		result.Error = result.Err.Error()
	}
	if result.TotalCount == 0 {
		result.TotalCount = len(result.Data)
	}
	return result
}

func (f *PageFetcher) fetchPage(ctx context.Context, baseURL string, params url.Values, page, pageSize int) (Envelope, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("pageNo", strconv.Itoa(page))
	q.Set("numOfRows", strconv.Itoa(pageSize))

	pageURL := baseURL + "?" + q.Encode()
	body, err := f.exec.Get(ctx, pageURL)
	if err != nil {
		return Envelope{}, err
	}

	env, err := ParseEnvelope(body, RedactURL(pageURL))
	if err != nil {
		var svcErr *ServiceFailureError
		if errors.As(err, &svcErr) {
			return Envelope{}, err
		}
		return Envelope{}, fmt.Errorf("page %d: %w", page, err)
	}

	for i, item := range env.Items {
		env.Items[i] = CanonicalizeRecord(item)
	}
	if env.PageNo == 0 {
		env.PageNo = page
	}
	return env, nil
}
