package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yamelab/medref/internal/queue"
)

// QueueStore is an in-memory crawl queue with the same lifecycle rules as
// the postgres one.
type QueueStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*queue.Item
	byKey  map[[2]string]int64
}

// NewQueueStore builds an empty queue.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		nextID: 1,
		items:  make(map[int64]*queue.Item),
		byKey:  make(map[[2]string]int64),
	}
}

// Enqueue inserts or, on a duplicate (source, urlOrTitle), keeps the lower
// priority value.
func (s *QueueStore) Enqueue(_ context.Context, item queue.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{item.Source, item.URLOrTitle}
	if id, ok := s.byKey[key]; ok {
		existing := s.items[id]
		if item.Priority < existing.Priority {
			existing.Priority = item.Priority
		}
		return false, nil
	}

	item.ID = s.nextID
	s.nextID++
	if item.Lang == "" {
		item.Lang = queue.DefaultLang
	}
	item.Status = queue.StatusPending
	item.CreatedAt = time.Now()
	s.items[item.ID] = &item
	s.byKey[key] = item.ID
	return true, nil
}

// Claim takes up to limit unclaimed pending items, most urgent first.
func (s *QueueStore) Claim(_ context.Context, limit int) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*queue.Item
	for _, item := range s.items {
		if item.Status == queue.StatusPending && item.ClaimedAt == nil {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].ID < pending[j].ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now()
	claimed := make([]queue.Item, 0, len(pending))
	for _, item := range pending {
		item.ClaimedAt = &now
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

// Resolve moves a pending item to a terminal status.
func (s *QueueStore) Resolve(_ context.Context, id int64, status queue.Status, detail string) error {
	if !status.Terminal() {
		return queue.ErrTerminal
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.Status != queue.StatusPending {
		return queue.ErrTerminal
	}
	now := time.Now()
	item.Status = status
	item.Detail = detail
	item.ResolvedAt = &now
	return nil
}

// Stats counts items by source and status.
func (s *QueueStore) Stats(_ context.Context) ([]queue.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[[2]string]int)
	for _, item := range s.items {
		counts[[2]string{item.Source, string(item.Status)}]++
	}
	out := make([]queue.StatusCount, 0, len(counts))
	for key, n := range counts {
		out = append(out, queue.StatusCount{Source: key[0], Status: queue.Status(key[1]), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// Item returns a copy of the stored item for assertions.
func (s *QueueStore) Item(id int64) (queue.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return queue.Item{}, false
	}
	return *item, true
}
