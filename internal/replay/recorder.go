// Package replay archives processed runs and plays them back through
// the observer pipeline at a chosen speed.
package replay

import (
	"context"
	"fmt"
	"time"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/observability"
	"storesim-observer/internal/storage"
)

// DefaultBatchSize is the number of ticks buffered before a write.
const DefaultBatchSize = 32

// Recorder buffers snapshots and writes them to the tick archive in
// batches. Not safe for concurrent use; it is driven by the single
// tick-processing goroutine.
type Recorder struct {
	store     storage.TickArchiveStore
	batchSize int
	pending   []*domain.ArchivedTick
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store storage.TickArchiveStore, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{
		store:     store,
		batchSize: batchSize,
	}
}

// RecordTick buffers one snapshot, flushing when the batch fills.
func (r *Recorder) RecordTick(ctx context.Context, runID string, snap domain.TickSnapshot) error {
	products := make([]domain.ProductState, len(snap.Products))
	copy(products, snap.Products)

	r.pending = append(r.pending, &domain.ArchivedTick{
		RunID:      runID,
		Tick:       snap.Tick,
		Metrics:    snap.Metrics,
		Products:   products,
		RecordedAt: time.Now().UnixMilli(),
	})

	if len(r.pending) >= r.batchSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered ticks. The buffer is kept on failure so a
// later flush can retry.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}

	if err := r.store.InsertTicks(ctx, r.pending); err != nil {
		observability.RecordDBQueryError("tick_archive", "insert")
		return fmt.Errorf("archiving %d ticks: %w", len(r.pending), err)
	}

	observability.RecordTicksArchived(len(r.pending))
	r.pending = r.pending[:0]
	return nil
}

// Pending returns the number of buffered, unwritten ticks.
func (r *Recorder) Pending() int {
	return len(r.pending)
}
