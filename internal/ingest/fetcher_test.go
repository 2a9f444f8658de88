package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pagedRequester struct {
	pages    map[int]string
	failPage int
	seen     []string
}

func (r *pagedRequester) Get(_ context.Context, rawURL string) ([]byte, error) {
	r.seen = append(r.seen, rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	page := 0
	fmt.Sscanf(u.Query().Get("pageNo"), "%d", &page)
	if r.failPage != 0 && page == r.failPage {
		return nil, errors.New("upstream exploded")
	}
	body, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unexpected page %d", page)
	}
	return []byte(body), nil
}

func pageBody(totalCount, pageNo, n int) string {
	items := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"DUTY_NAME":"h-%d-%d"}`, pageNo, i)
	}
	return fmt.Sprintf(`{"header":{},"body":{"items":[%s],"totalCount":%d,"pageNo":%d,"numOfRows":%d}}`,
		items, totalCount, pageNo, n)
}

func newTestFetcher(req Requester) (*PageFetcher, *[]time.Duration) {
	f := NewPageFetcher(req, zap.NewNop())
	var sleeps []time.Duration
	f.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return f, &sleeps
}

func TestFetchAllWalksEveryPage(t *testing.T) {
	req := &pagedRequester{pages: map[int]string{
		1: pageBody(250, 1, 100),
		2: pageBody(250, 2, 100),
		3: pageBody(250, 3, 50),
	}}
	fetcher, sleeps := newTestFetcher(req)

	result := fetcher.FetchAll(context.Background(), "http://api.test/list", url.Values{"serviceKey": {"k"}}, 100, 0)
	require.True(t, result.Success)
	require.NoError(t, result.Err)
	require.Equal(t, 3, result.PageCount)
	require.Equal(t, 250, result.TotalCount)
	require.Len(t, result.Data, 250)
	require.Len(t, req.seen, 3)
	require.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, *sleeps)
	require.Equal(t, "h-1-0", result.Data[0]["dutyName"])
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	req := &pagedRequester{pages: map[int]string{
		1: `{"header":{},"body":{"items":"","totalCount":900}}`,
	}}
	fetcher, _ := newTestFetcher(req)

	result := fetcher.FetchAll(context.Background(), "http://api.test/list", nil, 100, 0)
	require.True(t, result.Success)
	require.Equal(t, 1, result.PageCount)
	require.Empty(t, result.Data)
}

func TestFetchAllHonorsMaxPages(t *testing.T) {
	req := &pagedRequester{pages: map[int]string{
		1: pageBody(1000, 1, 100),
		2: pageBody(1000, 2, 100),
	}}
	fetcher, _ := newTestFetcher(req)

	result := fetcher.FetchAll(context.Background(), "http://api.test/list", nil, 100, 2)
	require.True(t, result.Success)
	require.Equal(t, 2, result.PageCount)
	require.Len(t, result.Data, 200)
	require.Len(t, req.seen, 2)
}

func TestFetchAllKeepsCompletedPagesOnFailure(t *testing.T) {
	req := &pagedRequester{
		pages: map[int]string{
			1: pageBody(300, 1, 100),
			2: pageBody(300, 2, 100),
		},
		failPage: 3,
	}
	fetcher, _ := newTestFetcher(req)

	result := fetcher.FetchAll(context.Background(), "http://api.test/list", nil, 100, 0)
	require.True(t, result.Success)
	require.Error(t, result.Err)
	require.Equal(t, 2, result.PageCount)
	require.Len(t, result.Data, 200)
}

func TestFetchAllFailsWhenNoPageSucceeds(t *testing.T) {
	req := &pagedRequester{failPage: 1, pages: map[int]string{}}
	fetcher, _ := newTestFetcher(req)

	result := fetcher.FetchAll(context.Background(), "http://api.test/list", nil, 100, 0)
	require.False(t, result.Success)
	require.Error(t, result.Err)
	require.Zero(t, result.PageCount)
}

func TestFetchAllStopsAtPageBoundaryOnCancel(t *testing.T) {
	req := &pagedRequester{pages: map[int]string{
		1: pageBody(300, 1, 100),
		2: pageBody(300, 2, 100),
		3: pageBody(300, 3, 100),
	}}
	fetcher, _ := newTestFetcher(req)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.sleep = func(time.Duration) { cancel() }

	result := fetcher.FetchAll(ctx, "http://api.test/list", nil, 100, 0)
	require.True(t, result.Success)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, 1, result.PageCount)
	require.Len(t, result.Data, 100)
}
