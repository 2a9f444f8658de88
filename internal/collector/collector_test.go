package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/storage/memory"
)

// fakePortal serves a header/body paginated endpoint with three hospitals.
func fakePortal(t *testing.T) *httptest.Server {
	t.Helper()
	hospitals := []string{"A1", "A2", "A3"}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serviceKey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		size, _ := strconv.Atoi(r.URL.Query().Get("numOfRows"))
		start := (page - 1) * size
		end := start + size
		if end > len(hospitals) {
			end = len(hospitals)
		}
		items := ""
		for i := start; i < end; i++ {
			if i > start {
				items += ","
			}
			items += fmt.Sprintf(`{"HPID":"%s","DUTY_NAME":"hospital %s"}`, hospitals[i], hospitals[i])
		}
		fmt.Fprintf(w, `{"header":{"resultCode":"00"},"body":{"items":[%s],"totalCount":%d,"pageNo":%d,"numOfRows":%d}}`,
			items, len(hospitals), page, size)
	}))
}

func quickFetcher(t *testing.T) *ingest.PageFetcher {
	t.Helper()
	exec := ingest.NewExecutor(http.DefaultClient, ingest.DefaultRetryConfig(), zap.NewNop())
	return ingest.NewPageFetcher(exec, zap.NewNop())
}

func TestCollectorFetchesAndUpserts(t *testing.T) {
	srv := fakePortal(t)
	defer srv.Close()

	store := memory.NewRecordStore()
	c := New(Domain{
		Name:        "hospitals",
		BaseURL:     srv.URL,
		Path:        "/getHsptlMdcncFullDown",
		Table:       "hospitals",
		NaturalKeys: []string{"hpid"},
		PageSize:    2,
		ServiceKey:  "test-key",
	}, quickFetcher(t), store, zap.NewNop())

	result := c.Run(context.Background(), false)
	require.True(t, result.Success)
	require.NoError(t, result.Err)
	require.Equal(t, 2, result.PageCount)
	require.Equal(t, 3, result.TotalCount)
	require.Equal(t, 3, result.Save.Saved)
	require.Equal(t, 3, store.Len("hospitals"))

	record, ok := store.Get("hospitals", "A2")
	require.True(t, ok)
	require.Equal(t, "hospital A2", record["dutyName"])
}

func TestCollectorSecondRunSkipsEverything(t *testing.T) {
	srv := fakePortal(t)
	defer srv.Close()

	store := memory.NewRecordStore()
	c := New(Domain{
		Name:        "hospitals",
		BaseURL:     srv.URL,
		Path:        "/getHsptlMdcncFullDown",
		Table:       "hospitals",
		NaturalKeys: []string{"hpid"},
		PageSize:    100,
		ServiceKey:  "test-key",
	}, quickFetcher(t), store, zap.NewNop())

	first := c.Run(context.Background(), false)
	require.Equal(t, 3, first.Save.Saved)

	second := c.Run(context.Background(), false)
	require.True(t, second.Success)
	require.Zero(t, second.Save.Saved)
	require.Equal(t, 3, second.Save.Skipped)
}

func TestCollectorWithoutServiceKey(t *testing.T) {
	store := memory.NewRecordStore()
	c := New(Domain{Name: "hospitals", Table: "hospitals", NaturalKeys: []string{"hpid"}}, quickFetcher(t), store, zap.NewNop())

	result := c.Run(context.Background(), false)
	require.False(t, result.Success)
	var cfgErr *ingest.ConfigError
	require.ErrorAs(t, result.Err, &cfgErr)
}

func TestCollectorSubResourceFanOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"body":{"items":[{"INGR_CODE":"D%s","MIXTURE_INGR_CODE":"M1"}],"totalCount":1}}`,
			url.PathEscape(r.URL.Path[len(r.URL.Path)-1:]))
	}))
	defer srv.Close()

	store := memory.NewRecordStore()
	c := New(Domain{
		Name:        "dur_ingredient",
		BaseURL:     srv.URL,
		Table:       "dur_ingredient_rules",
		NaturalKeys: []string{"typeName", "ingrCode", "mixtureIngrCode"},
		PageSize:    100,
		ServiceKey:  "test-key",
		SubResources: []SubResource{
			{Name: "병용금기", Path: "/op1", Table: "dur_ingredient_rules"},
			{Name: "노인주의", Path: "/op2", Table: "dur_ingredient_rules"},
		},
	}, quickFetcher(t), store, zap.NewNop())

	result := c.Run(context.Background(), false)
	require.True(t, result.Success)
	require.Equal(t, 2, result.PageCount)
	require.Equal(t, 2, result.Save.Saved)
	require.Equal(t, 2, store.Len("dur_ingredient_rules"))
}

type panickyStore struct{ *memory.RecordStore }

func (panickyStore) Upsert(context.Context, string, []ingest.Record, string, bool) ingest.SaveResult {
	panic("store exploded")
}

func TestOrchestratorIsolatesFailures(t *testing.T) {
	srv := fakePortal(t)
	defer srv.Close()

	good := New(Domain{
		Name: "hospitals", BaseURL: srv.URL, Path: "/x", Table: "hospitals",
		NaturalKeys: []string{"hpid"}, PageSize: 100, ServiceKey: "test-key",
	}, quickFetcher(t), memory.NewRecordStore(), zap.NewNop())
	bad := New(Domain{
		Name: "pharmacies", BaseURL: srv.URL, Path: "/x", Table: "pharmacies",
		NaturalKeys: []string{"hpid"}, PageSize: 100, ServiceKey: "test-key",
	}, quickFetcher(t), &panickyStore{memory.NewRecordStore()}, zap.NewNop())

	o := NewOrchestrator([]*Collector{good, bad}, nil, zap.NewNop())
	summary := o.CollectAll(context.Background(), false)

	require.False(t, summary.Success)
	require.Len(t, summary.Results, 2)
	require.True(t, summary.Results["hospitals"].Success)
	require.False(t, summary.Results["pharmacies"].Success)
	require.Contains(t, summary.Results["pharmacies"].Error, "panicked")
}

func TestOrchestratorCollectOneSurfacesConfigError(t *testing.T) {
	c := New(Domain{Name: "hospitals", Table: "hospitals", NaturalKeys: []string{"hpid"}},
		quickFetcher(t), memory.NewRecordStore(), zap.NewNop())
	o := NewOrchestrator([]*Collector{c}, nil, zap.NewNop())

	result, err := o.CollectOne(context.Background(), "hospitals", false)
	var cfgErr *ingest.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.False(t, result.Success)
}

func TestOrchestratorCollectOneUnknownDomain(t *testing.T) {
	o := NewOrchestrator(nil, nil, zap.NewNop())
	_, err := o.CollectOne(context.Background(), "nope", false)
	require.Error(t, err)
}

func TestOrchestratorDomainsSorted(t *testing.T) {
	store := memory.NewRecordStore()
	f := quickFetcher(t)
	o := NewOrchestrator([]*Collector{
		New(Domain{Name: "pharmacies"}, f, store, zap.NewNop()),
		New(Domain{Name: "hospitals"}, f, store, zap.NewNop()),
	}, nil, zap.NewNop())
	require.Equal(t, []string{"hospitals", "pharmacies"}, o.Domains())
}

func TestMergeResultsSumsCounts(t *testing.T) {
	merged := mergeResults([]ingest.CollectionResult{
		{Success: true, PageCount: 2, TotalCount: 10, Elapsed: time.Second,
			Save: ingest.SaveResult{Total: 10, Saved: 10}},
		{Success: false, PageCount: 1, TotalCount: 5,
			Save: ingest.SaveResult{Total: 5, Errors: 5}, Err: context.DeadlineExceeded, Error: "deadline"},
	})
	require.False(t, merged.Success)
	require.Equal(t, 3, merged.PageCount)
	require.Equal(t, 15, merged.TotalCount)
	require.Equal(t, 15, merged.Save.Total)
	require.Error(t, merged.Err)
}
