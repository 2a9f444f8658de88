package memory

import (
	"context"
	"sync"

	"github.com/yamelab/medref/internal/queue"
)

// RunStore keeps audit rows in memory, newest first on read.
type RunStore struct {
	mu   sync.Mutex
	runs []queue.Run
}

// NewRunStore builds an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{}
}

// Record appends one run row.
func (s *RunStore) Record(_ context.Context, run queue.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// Recent lists the latest runs, newest first.
func (s *RunStore) Recent(_ context.Context, limit int) ([]queue.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]queue.Run, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
