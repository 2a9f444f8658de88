// Package seed expands the discovery seed tables into crawl-queue items.
package seed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/yamelab/medref/internal/queue"
)

// Planner turns enabled seeds into pending queue items. Planning is safe to
// repeat: the queue deduplicates on (source, urlOrTitle).
type Planner struct {
	seeds  queue.SeedStore
	q      queue.Store
	logger *zap.Logger
}

// NewPlanner builds a planner.
func NewPlanner(seeds queue.SeedStore, q queue.Store, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{seeds: seeds, q: q, logger: logger}
}

// Plan expands every enabled seed and returns how many new items were
// enqueued.
func (p *Planner) Plan(ctx context.Context) (int, error) {
	inserted := 0

	categories, err := p.seeds.CategorySeeds(ctx)
	if err != nil {
		return 0, fmt.Errorf("load category seeds: %w", err)
	}
	for _, seed := range categories {
		if !seed.Enabled {
			continue
		}
		fresh, err := p.q.Enqueue(ctx, queue.Item{
			Source:     seed.Source,
			URLOrTitle: seed.Category,
			Priority:   seed.Priority,
		})
		if err != nil {
			return inserted, fmt.Errorf("enqueue category %s/%s: %w", seed.Source, seed.Category, err)
		}
		if fresh {
			inserted++
		}
	}

	pages, err := p.seeds.PageSeeds(ctx)
	if err != nil {
		return inserted, fmt.Errorf("load page seeds: %w", err)
	}
	for _, seed := range pages {
		if !seed.Enabled || seed.LastPage < seed.FirstPage {
			continue
		}
		for page := seed.FirstPage; page <= seed.LastPage; page++ {
			target := strings.ReplaceAll(seed.URLTemplate, "{page}", strconv.Itoa(page))
			fresh, err := p.q.Enqueue(ctx, queue.Item{
				Source:     seed.Source,
				URLOrTitle: target,
				Priority:   seed.Priority,
			})
			if err != nil {
				return inserted, fmt.Errorf("enqueue page %s/%s: %w", seed.Source, target, err)
			}
			if fresh {
				inserted++
			}
		}
	}

	p.logger.Info("seed plan applied", zap.Int("newItems", inserted))
	return inserted, nil
}
