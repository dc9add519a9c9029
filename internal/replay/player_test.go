package replay

import (
	"context"
	"errors"
	"math"
	"testing"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/engine"
	"storesim-observer/internal/feed"
	"storesim-observer/internal/highlights"
	"storesim-observer/internal/observer"
	"storesim-observer/internal/storage"
	"storesim-observer/internal/storage/memory"
)

func archiveRun(t *testing.T, store storage.TickArchiveStore, ticks []*domain.ArchivedTick) {
	t.Helper()
	if err := store.InsertTicks(context.Background(), ticks); err != nil {
		t.Fatalf("seeding archive: %v", err)
	}
}

func newPipeline() (*engine.Engine, *feed.Feed) {
	f := feed.New(20)
	e := engine.New(engine.Options{
		Classifier: observer.NewClassifier(observer.NewState()),
		Aggregator: highlights.NewAggregator(),
		Feed:       f,
	})
	return e, f
}

func TestPlayer_ReplaysArchivedRun(t *testing.T) {
	store := memory.NewTickArchiveStore()
	archiveRun(t, store, []*domain.ArchivedTick{
		{RunID: "run-1", Tick: 1, Metrics: domain.Metrics{TotalRevenue: 0},
			Products: []domain.ProductState{{ASIN: "B001", Inventory: 100, Price: 19.99}}},
		{RunID: "run-1", Tick: 2, Metrics: domain.Metrics{TotalRevenue: 19.99, UnitsSold: 1, TotalProfit: 5.00},
			Products: []domain.ProductState{{ASIN: "B001", Inventory: 99, Price: 19.99}}},
	})

	e, f := newPipeline()
	player := NewPlayer(store, e, PlayerConfig{})

	summary, err := player.Play(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	if summary.Summary.TotalTicks != 2 {
		t.Errorf("TotalTicks = %d, want 2", summary.Summary.TotalTicks)
	}
	if summary.Summary.TotalRevenue != 19.99 {
		t.Errorf("TotalRevenue = %v, want 19.99", summary.Summary.TotalRevenue)
	}
	wantInventoryValue := 99 * 19.99
	if math.Abs(summary.Summary.FinalInventoryValue-wantInventoryValue) > 1e-9 {
		t.Errorf("FinalInventoryValue = %v, want %v", summary.Summary.FinalInventoryValue, wantInventoryValue)
	}

	// The sale on tick 2 went through the live classification path.
	if summary.Highlights.BestRevenueTick != 2 {
		t.Errorf("BestRevenueTick = %d, want 2", summary.Highlights.BestRevenueTick)
	}
	if f.Len() == 0 {
		t.Error("feed is empty after replay")
	}
}

func TestPlayer_UnknownRun(t *testing.T) {
	store := memory.NewTickArchiveStore()
	e, _ := newPipeline()
	player := NewPlayer(store, e, PlayerConfig{})

	_, err := player.Play(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPlayer_ReplayIsDeterministic(t *testing.T) {
	store := memory.NewTickArchiveStore()
	ticks := make([]*domain.ArchivedTick, 0, 10)
	inv := 100
	revenue := 0.0
	for i := 1; i <= 10; i++ {
		if i%2 == 0 {
			inv -= i
			revenue += float64(i) * 19.99
		}
		ticks = append(ticks, &domain.ArchivedTick{
			RunID: "run-1", Tick: i,
			Metrics:  domain.Metrics{TotalRevenue: revenue},
			Products: []domain.ProductState{{ASIN: "B001", Inventory: inv, Price: 19.99}},
		})
	}
	archiveRun(t, store, ticks)

	e1, f1 := newPipeline()
	if _, err := NewPlayer(store, e1, PlayerConfig{}).Play(context.Background(), "run-1"); err != nil {
		t.Fatalf("first Play: %v", err)
	}
	e2, f2 := newPipeline()
	if _, err := NewPlayer(store, e2, PlayerConfig{}).Play(context.Background(), "run-1"); err != nil {
		t.Fatalf("second Play: %v", err)
	}

	if e1.Highlights() != e2.Highlights() {
		t.Errorf("replays diverged: %+v vs %+v", e1.Highlights(), e2.Highlights())
	}
	ent1, ent2 := f1.Entries(), f2.Entries()
	if len(ent1) != len(ent2) {
		t.Fatalf("feed lengths diverged: %d vs %d", len(ent1), len(ent2))
	}
	for i := range ent1 {
		if ent1[i] != ent2[i] {
			t.Errorf("feed entry %d diverged: %+v vs %+v", i, ent1[i], ent2[i])
		}
	}
}

func TestPlayer_CancelledContext(t *testing.T) {
	store := memory.NewTickArchiveStore()
	archiveRun(t, store, []*domain.ArchivedTick{
		{RunID: "run-1", Tick: 1, Products: []domain.ProductState{}},
	})

	e, _ := newPipeline()
	player := NewPlayer(store, e, PlayerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := player.Play(ctx, "run-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
