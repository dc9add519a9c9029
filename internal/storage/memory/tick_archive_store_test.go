package memory

import (
	"context"
	"errors"
	"testing"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
)

func makeTick(runID string, tick int) *domain.ArchivedTick {
	return &domain.ArchivedTick{
		RunID: runID,
		Tick:  tick,
		Metrics: domain.Metrics{
			TotalRevenue: float64(tick) * 10,
			UnitsSold:    tick * 2,
		},
		Products: []domain.ProductState{
			{ASIN: "A1", Inventory: 100 - tick, Price: 9.99},
		},
		RecordedAt: int64(tick) * 1000,
	}
}

func TestTickArchiveStore_InsertAndGetOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewTickArchiveStore()

	// Insert out of order; reads must come back tick ASC.
	err := store.InsertTicks(ctx, []*domain.ArchivedTick{
		makeTick("run-1", 3), makeTick("run-1", 1), makeTick("run-1", 2),
	})
	if err != nil {
		t.Fatalf("InsertTicks failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(got))
	}
	for i, want := range []int{1, 2, 3} {
		if got[i].Tick != want {
			t.Errorf("position %d: expected tick %d, got %d", i, want, got[i].Tick)
		}
	}
	if len(got[0].Products) != 1 || got[0].Products[0].ASIN != "A1" {
		t.Errorf("expected product state retained, got %v", got[0].Products)
	}
}

func TestTickArchiveStore_DuplicateRejectsBatch(t *testing.T) {
	ctx := context.Background()
	store := NewTickArchiveStore()

	if err := store.InsertTicks(ctx, []*domain.ArchivedTick{makeTick("run-1", 1)}); err != nil {
		t.Fatalf("InsertTicks failed: %v", err)
	}

	err := store.InsertTicks(ctx, []*domain.ArchivedTick{
		makeTick("run-1", 2), makeTick("run-1", 1),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Whole batch rejected: tick 2 must not have been stored.
	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected batch rejection to keep 1 tick, got %d", len(got))
	}
}

func TestTickArchiveStore_IntraBatchDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewTickArchiveStore()

	err := store.InsertTicks(ctx, []*domain.ArchivedTick{
		makeTick("run-1", 1), makeTick("run-1", 1),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
}

func TestTickArchiveStore_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewTickArchiveStore()

	if err := store.InsertTicks(ctx, []*domain.ArchivedTick{
		makeTick("run-1", 1), makeTick("run-2", 1),
	}); err != nil {
		t.Fatalf("InsertTicks failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-2" {
		t.Errorf("expected only run-2 ticks, got %v", got)
	}
}

func TestTickArchiveStore_UnknownRunReturnsEmpty(t *testing.T) {
	got, err := NewTickArchiveStore().GetByRunID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
