package memory

import (
	"context"
	"sync"

	"github.com/yamelab/medref/internal/queue"
)

// SeedStore serves fixed seed lists.
type SeedStore struct {
	mu         sync.Mutex
	categories []queue.CategorySeed
	pages      []queue.PageSeed
}

// NewSeedStore builds a seed store with the given seeds.
func NewSeedStore(categories []queue.CategorySeed, pages []queue.PageSeed) *SeedStore {
	return &SeedStore{categories: categories, pages: pages}
}

// CategorySeeds lists the category seeds.
func (s *SeedStore) CategorySeeds(_ context.Context) ([]queue.CategorySeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.CategorySeed(nil), s.categories...), nil
}

// PageSeeds lists the page-range seeds.
func (s *SeedStore) PageSeeds(_ context.Context) ([]queue.PageSeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.PageSeed(nil), s.pages...), nil
}
