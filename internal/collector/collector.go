// Package collector runs the per-domain ingestion pipelines: fetch every
// page of a reference-data API, normalize it, and upsert it.
package collector

import (
	"context"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/ingest"
	"github.com/yamelab/medref/internal/metrics"
)

// SubResource is one operation of a multi-operation API, landing in its own
// table. The DUR services expose seven of these each.
type SubResource struct {
	Name  string
	Path  string
	Table string
}

// Domain describes one reference-data source end to end.
type Domain struct {
	Name        string
	BaseURL     string
	Path        string
	Table       string
	NaturalKeys []string
	PageSize    int
	MaxPages    int
	ServiceKey  string
	Extra       map[string]string
	// SubResources, when set, replaces the single Path/Table pair with a
	// concurrent fan-out, one collection per sub-resource.
	SubResources []SubResource
}

// Collector fetches and persists one domain.
type Collector struct {
	domain  Domain
	fetcher *ingest.PageFetcher
	store   ingest.RecordStore
	logger  *zap.Logger
}

// New builds a collector for one domain.
func New(domain Domain, fetcher *ingest.PageFetcher, store ingest.RecordStore, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		domain:  domain,
		fetcher: fetcher,
		store:   store,
		logger:  logger.With(zap.String("domain", domain.Name)),
	}
}

// Name returns the domain name.
func (c *Collector) Name() string {
	return c.domain.Name
}

// Run collects the whole domain. force bypasses the unchanged-record skip.
func (c *Collector) Run(ctx context.Context, force bool) ingest.CollectionResult {
	if c.domain.ServiceKey == "" {
		err := &ingest.ConfigError{Reason: "service key not configured for domain " + c.domain.Name}
		c.logger.Warn("skipping domain", zap.Error(err))
		return ingest.CollectionResult{Err: err, Error: err.Error()}
	}

	if len(c.domain.SubResources) == 0 {
		return c.collect(ctx, c.domain.Path, c.domain.Table, "", force)
	}

	results := make([]ingest.CollectionResult, len(c.domain.SubResources))
	var wg sync.WaitGroup
	for i, sub := range c.domain.SubResources {
		wg.Add(1)
		go func(i int, sub SubResource) {
			defer wg.Done()
			results[i] = c.collect(ctx, sub.Path, sub.Table, sub.Name, force)
		}(i, sub)
	}
	wg.Wait()
	return mergeResults(results)
}

func (c *Collector) collect(ctx context.Context, path, table, typeName string, force bool) ingest.CollectionResult {
	params := url.Values{}
	params.Set("serviceKey", c.domain.ServiceKey)
	params.Set("type", "json")
	for k, v := range c.domain.Extra {
		params.Set(k, v)
	}

	result := c.fetcher.FetchAll(ctx, c.domain.BaseURL+path, params, c.domain.PageSize, c.domain.MaxPages)
	metrics.ObservePages(c.domain.Name, result.PageCount, result.Success)
	if len(result.Data) == 0 {
		return result
	}

	// Sub-resource rows carry their operation name so compound keys stay
	// unique across the shared rule tables.
	if typeName != "" {
		for _, record := range result.Data {
			record["typeName"] = typeName
		}
	}

	if len(c.domain.NaturalKeys) == 0 {
		err := &ingest.ConfigError{Reason: "no natural key configured for table " + table}
		result.Success = false
		result.Err = err
		result.Error = err.Error()
		return result
	}
	if len(c.domain.NaturalKeys) > 1 {
		result.Save = c.store.UpsertCompound(ctx, table, result.Data, c.domain.NaturalKeys, force)
	} else {
		result.Save = c.store.Upsert(ctx, table, result.Data, c.domain.NaturalKeys[0], force)
	}
	metrics.ObserveSave(c.domain.Name, result.Save)

	c.logger.Info("domain collected",
		zap.String("table", table),
		zap.Int("pages", result.PageCount),
		zap.Int("records", len(result.Data)),
		zap.Int("saved", result.Save.Saved),
		zap.Int("updated", result.Save.Updated),
		zap.Int("skipped", result.Save.Skipped),
		zap.Int("errors", result.Save.Errors),
	)
	return result
}

func mergeResults(results []ingest.CollectionResult) ingest.CollectionResult {
	merged := ingest.CollectionResult{Success: true}
	for _, r := range results {
		merged.Success = merged.Success && r.Success
		merged.TotalCount += r.TotalCount
		merged.PageCount += r.PageCount
		merged.Elapsed += r.Elapsed
		merged.Data = append(merged.Data, r.Data...)
		merged.Save.Add(r.Save)
		if r.Err != nil && merged.Err == nil {
			merged.Err = r.Err
			merged.Error = r.Error
		}
	}
	return merged
}
