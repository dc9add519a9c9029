package memory

import (
	"context"
	"sort"
	"sync"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
)

// TickArchiveStore is an in-memory implementation of storage.TickArchiveStore.
type TickArchiveStore struct {
	mu   sync.RWMutex
	data map[string]map[int]*domain.ArchivedTick // run_id → tick → record
}

// NewTickArchiveStore creates a new in-memory tick archive store.
func NewTickArchiveStore() *TickArchiveStore {
	return &TickArchiveStore{
		data: make(map[string]map[int]*domain.ArchivedTick),
	}
}

// Compile-time interface check.
var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)

// InsertTicks adds recorded ticks atomically. Fails the entire batch on any
// duplicate (run_id, tick), including intra-batch duplicates.
func (s *TickArchiveStore) InsertTicks(_ context.Context, ticks []*domain.ArchivedTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		runID string
		tick  int
	}
	batchKeys := make(map[key]struct{}, len(ticks))

	for _, t := range ticks {
		if t == nil || t.RunID == "" || t.Tick < 0 {
			return storage.ErrInvalidInput
		}
		k := key{t.RunID, t.Tick}
		if _, dup := batchKeys[k]; dup {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
		if run, ok := s.data[t.RunID]; ok {
			if _, exists := run[t.Tick]; exists {
				return storage.ErrDuplicateKey
			}
		}
	}

	for _, t := range ticks {
		run, ok := s.data[t.RunID]
		if !ok {
			run = make(map[int]*domain.ArchivedTick)
			s.data[t.RunID] = run
		}
		copied := *t
		copied.Products = append([]domain.ProductState(nil), t.Products...)
		run[t.Tick] = &copied
	}
	return nil
}

// GetByRunID retrieves all archived ticks for a run, ordered by tick ASC.
func (s *TickArchiveStore) GetByRunID(_ context.Context, runID string) ([]*domain.ArchivedTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, nil
	}

	out := make([]*domain.ArchivedTick, 0, len(run))
	for _, t := range run {
		copied := *t
		copied.Products = append([]domain.ProductState(nil), t.Products...)
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}
