package memory

import (
	"context"
	"sync"

	"github.com/yamelab/medref/internal/queue"
)

// PageStore deduplicates page snapshots by (source, contentHash).
type PageStore struct {
	mu     sync.Mutex
	nextID int64
	pages  map[[2]string]queue.SourcePage
}

// NewPageStore builds an empty page store.
func NewPageStore() *PageStore {
	return &PageStore{nextID: 1, pages: make(map[[2]string]queue.SourcePage)}
}

// UpsertPage stores the snapshot; identical content only refreshes the row.
func (s *PageStore) UpsertPage(_ context.Context, page queue.SourcePage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.Lang == "" {
		page.Lang = queue.DefaultLang
	}
	key := [2]string{page.Source, page.ContentHash}
	if existing, ok := s.pages[key]; ok {
		existing.URL = page.URL
		existing.FetchedAt = page.FetchedAt
		s.pages[key] = existing
		return false, nil
	}
	page.ID = s.nextID
	s.nextID++
	s.pages[key] = page
	return true, nil
}

// Page returns the stored snapshot for assertions.
func (s *PageStore) Page(source, hash string) (queue.SourcePage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[[2]string{source, hash}]
	return page, ok
}

// Len counts stored snapshots.
func (s *PageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}
