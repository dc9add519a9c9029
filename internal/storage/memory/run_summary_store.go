// Package memory provides in-memory storage implementations, used by tests
// and by observers running without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
)

// RunSummaryStore is an in-memory implementation of storage.RunSummaryStore.
type RunSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunSummaryStore creates a new in-memory run summary store.
func NewRunSummaryStore() *RunSummaryStore {
	return &RunSummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(_ context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[summary.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copied := *summary
	s.data[summary.RunID] = &copied
	return nil
}

// GetByID retrieves a summary by run id. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copied := *summary
	return &copied, nil
}

// List retrieves up to limit summaries, most recently finished first.
func (s *RunSummaryStore) List(_ context.Context, limit int) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.RunSummary, 0, len(s.data))
	for _, summary := range s.data {
		copied := *summary
		all = append(all, &copied)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].FinishedAt != all[j].FinishedAt {
			return all[i].FinishedAt > all[j].FinishedAt
		}
		return all[i].RunID < all[j].RunID
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
