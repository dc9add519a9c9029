package replay

import (
	"context"
	"errors"
	"testing"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage/memory"
)

func snap(tick int, revenue float64) domain.TickSnapshot {
	return domain.TickSnapshot{
		Tick:    tick,
		Metrics: domain.Metrics{TotalRevenue: revenue},
		Products: []domain.ProductState{
			{ASIN: "B001", Inventory: 50, Price: 9.99},
		},
	}
}

func TestRecorder_BatchesWrites(t *testing.T) {
	store := memory.NewTickArchiveStore()
	rec := NewRecorder(store, 3)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := rec.RecordTick(ctx, "run-1", snap(i, float64(i))); err != nil {
			t.Fatalf("RecordTick %d: %v", i, err)
		}
	}

	// Below batch size: nothing written yet.
	if _, err := store.GetByRunID(ctx, "run-1"); err != nil {
		// empty result, not an error
		t.Fatalf("GetByRunID: %v", err)
	}
	got, _ := store.GetByRunID(ctx, "run-1")
	if len(got) != 0 {
		t.Fatalf("%d ticks written before batch filled, want 0", len(got))
	}
	if rec.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", rec.Pending())
	}

	// Third tick fills the batch.
	if err := rec.RecordTick(ctx, "run-1", snap(3, 3)); err != nil {
		t.Fatalf("RecordTick 3: %v", err)
	}
	got, _ = store.GetByRunID(ctx, "run-1")
	if len(got) != 3 {
		t.Fatalf("got %d archived ticks, want 3", len(got))
	}
	if rec.Pending() != 0 {
		t.Errorf("Pending = %d after flush, want 0", rec.Pending())
	}
}

func TestRecorder_FlushDrainsRemainder(t *testing.T) {
	store := memory.NewTickArchiveStore()
	rec := NewRecorder(store, 10)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if err := rec.RecordTick(ctx, "run-1", snap(i, float64(i))); err != nil {
			t.Fatalf("RecordTick %d: %v", i, err)
		}
	}
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run-1")
	if len(got) != 4 {
		t.Fatalf("got %d archived ticks, want 4", len(got))
	}
	for i, at := range got {
		if at.Tick != i+1 {
			t.Errorf("archived tick %d = %d, want %d", i, at.Tick, i+1)
		}
	}

	// Flushing an empty buffer is a no-op.
	if err := rec.Flush(ctx); err != nil {
		t.Errorf("empty Flush: %v", err)
	}
}

type failingArchive struct {
	calls int
}

func (f *failingArchive) InsertTicks(context.Context, []*domain.ArchivedTick) error {
	f.calls++
	return errors.New("clickhouse down")
}

func (f *failingArchive) GetByRunID(context.Context, string) ([]*domain.ArchivedTick, error) {
	return nil, nil
}

func TestRecorder_KeepsBufferOnFailure(t *testing.T) {
	store := &failingArchive{}
	rec := NewRecorder(store, 2)
	ctx := context.Background()

	rec.RecordTick(ctx, "run-1", snap(1, 1))
	if err := rec.RecordTick(ctx, "run-1", snap(2, 2)); err == nil {
		t.Fatal("expected flush error")
	}
	if rec.Pending() != 2 {
		t.Errorf("Pending = %d after failed flush, want 2 (retryable)", rec.Pending())
	}
}

func TestRecorder_CopiesProducts(t *testing.T) {
	store := memory.NewTickArchiveStore()
	rec := NewRecorder(store, 1)
	ctx := context.Background()

	s := snap(1, 1)
	if err := rec.RecordTick(ctx, "run-1", s); err != nil {
		t.Fatalf("RecordTick: %v", err)
	}
	// Mutating the caller's slice must not reach the archive.
	s.Products[0].Inventory = -999

	got, _ := store.GetByRunID(ctx, "run-1")
	if got[0].Products[0].Inventory != 50 {
		t.Errorf("archived inventory = %d, want 50", got[0].Products[0].Inventory)
	}
}
