package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
	"storesim-observer/internal/storage/postgres"
)

func makeSummary(runID string, finishedAt int64) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:    runID,
		Scenario: "tier_1_standard",
		Agent:    "gpt-storekeeper",
		Seed:     42,
		Summary: domain.FinishedSummary{
			TotalTicks:          120,
			TotalRevenue:        5400.50,
			TotalProfit:         1210.25,
			TotalUnitsSold:      310,
			FinalInventoryValue: 830.0,
			ProfitMargin:        0.224,
		},
		Highlights: domain.RunHighlights{
			BestRevenueTick:  40,
			BestRevenueDelta: 210.0,
			BestUnitsTick:    55,
			BestUnitsDelta:   18,
		},
		FinishedAt: finishedAt,
	}
}

func TestRunSummaryStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunSummaryStore(pool)

	want := makeSummary("run-1", 1700000000000)
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRunSummaryStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunSummaryStore(pool)

	require.NoError(t, store.Insert(ctx, makeSummary("run-1", 1000)))

	err := store.Insert(ctx, makeSummary("run-1", 2000))
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunSummaryStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunSummaryStore_ListNewestFirst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewRunSummaryStore(pool)

	require.NoError(t, store.Insert(ctx, makeSummary("run-old", 1000)))
	require.NoError(t, store.Insert(ctx, makeSummary("run-new", 3000)))
	require.NoError(t, store.Insert(ctx, makeSummary("run-mid", 2000)))

	got, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "run-new", got[0].RunID)
	require.Equal(t, "run-mid", got[1].RunID)
}
