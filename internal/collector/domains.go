package collector

import (
	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/config"
	"github.com/yamelab/medref/internal/ingest"
)

// Build turns the configured domain map into collectors. Per-domain page
// settings override the collector-wide defaults; the shared service key
// applies everywhere.
func Build(cfg config.Config, fetcher *ingest.PageFetcher, store ingest.RecordStore, logger *zap.Logger) []*Collector {
	collectors := make([]*Collector, 0, len(cfg.Domains))
	for name, dc := range cfg.Domains {
		domain := Domain{
			Name:        name,
			BaseURL:     dc.BaseURL,
			Path:        dc.Path,
			Table:       dc.Table,
			NaturalKeys: dc.NaturalKeys,
			PageSize:    dc.PageSize,
			MaxPages:    dc.MaxPages,
			ServiceKey:  cfg.Collector.ServiceKey,
			Extra:       dc.Extra,
		}
		if domain.PageSize <= 0 {
			domain.PageSize = cfg.Collector.PageSize
		}
		if domain.MaxPages <= 0 {
			domain.MaxPages = cfg.Collector.MaxPages
		}
		for _, sub := range dc.SubResources {
			domain.SubResources = append(domain.SubResources, SubResource(sub))
		}
		collectors = append(collectors, New(domain, fetcher, store, logger))
	}
	return collectors
}
