package storage

import (
	"context"

	"storesim-observer/internal/domain"
)

// RunSummaryStore provides access to run_summaries storage.
type RunSummaryStore interface {
	// Insert adds a completed run's summary. Returns ErrDuplicateKey if
	// run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary by run id. Returns ErrNotFound if not
	// exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// List retrieves up to limit summaries, most recently finished first.
	List(ctx context.Context, limit int) ([]*domain.RunSummary, error)
}

// TickArchiveStore retains per-tick snapshots of a run for replay.
type TickArchiveStore interface {
	// InsertTicks adds recorded ticks. Fails the entire batch on any
	// duplicate (run_id, tick).
	InsertTicks(ctx context.Context, ticks []*domain.ArchivedTick) error

	// GetByRunID retrieves all archived ticks for a run, ordered by tick
	// ascending.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ArchivedTick, error)
}
