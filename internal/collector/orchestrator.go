package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/events"
	"github.com/yamelab/medref/internal/ingest"
)

// Orchestrator fans a collection run out over a fixed set of collectors. One
// domain failing, or panicking, never takes the others down.
type Orchestrator struct {
	collectors map[string]*Collector
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewOrchestrator builds an orchestrator. publisher may be nil.
func NewOrchestrator(collectors []*Collector, publisher events.Publisher, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	byName := make(map[string]*Collector, len(collectors))
	for _, c := range collectors {
		byName[c.Name()] = c
	}
	return &Orchestrator{collectors: byName, publisher: publisher, logger: logger}
}

// Domains lists the configured domain names, sorted.
func (o *Orchestrator) Domains() []string {
	names := make([]string, 0, len(o.collectors))
	for name := range o.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll runs every domain concurrently and reports the combined
// outcome. Success is the conjunction of the per-domain outcomes.
func (o *Orchestrator) CollectAll(ctx context.Context, force bool) ingest.CollectionSummary {
	summary := ingest.CollectionSummary{
		Success: true,
		Results: make(map[string]ingest.CollectionResult, len(o.collectors)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, c := range o.collectors {
		wg.Add(1)
		go func(name string, c *Collector) {
			defer wg.Done()
			result := o.runIsolated(ctx, c, force)
			mu.Lock()
			summary.Results[name] = result
			summary.Success = summary.Success && result.Success
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	o.publishSummary(ctx, "collect.all", summary)
	return summary
}

// CollectOne runs a single domain by name. A misconfigured domain returns
// its ConfigError so callers can tell it apart from an upstream failure,
// which stays inside the result.
func (o *Orchestrator) CollectOne(ctx context.Context, name string, force bool) (ingest.CollectionResult, error) {
	c, ok := o.collectors[name]
	if !ok {
		return ingest.CollectionResult{}, fmt.Errorf("unknown domain %q", name)
	}
	result := o.runIsolated(ctx, c, force)
	o.publishSummary(ctx, "collect.one", ingest.CollectionSummary{
		Success: result.Success,
		Results: map[string]ingest.CollectionResult{name: result},
	})
	var cfgErr *ingest.ConfigError
	if errors.As(result.Err, &cfgErr) {
		return result, cfgErr
	}
	return result, nil
}

func (o *Orchestrator) runIsolated(ctx context.Context, c *Collector, force bool) (result ingest.CollectionResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("collector %s panicked: %v", c.Name(), r)
			o.logger.Error("collector panic", zap.String("domain", c.Name()), zap.Any("panic", r))
			result = ingest.CollectionResult{Err: err, Error: err.Error()}
		}
	}()
	return c.Run(ctx, force)
}

func (o *Orchestrator) publishSummary(ctx context.Context, kind string, summary ingest.CollectionSummary) {
	payload := map[string]any{
		"event":   kind,
		"success": summary.Success,
		"domains": len(summary.Results),
	}
	if err := o.publisher.Publish(ctx, payload); err != nil {
		o.logger.Warn("summary publish failed", zap.Error(err))
	}
}
