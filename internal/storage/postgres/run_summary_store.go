package postgres

import (
	"context"
	"fmt"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using PostgreSQL.
type RunSummaryStore struct {
	pool *Pool
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(pool *Pool) *RunSummaryStore {
	return &RunSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO run_summaries (
			run_id, scenario, agent, seed,
			total_ticks, total_revenue, total_profit, total_units_sold,
			final_inventory_value, profit_margin,
			best_revenue_tick, best_revenue_delta, best_units_tick, best_units_delta,
			finished_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Scenario, r.Agent, r.Seed,
		r.Summary.TotalTicks, r.Summary.TotalRevenue, r.Summary.TotalProfit, r.Summary.TotalUnitsSold,
		r.Summary.FinalInventoryValue, r.Summary.ProfitMargin,
		r.Highlights.BestRevenueTick, r.Highlights.BestRevenueDelta,
		r.Highlights.BestUnitsTick, r.Highlights.BestUnitsDelta,
		r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary by run id. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := selectColumns + ` WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	summary, err := scanSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary: %w", err)
	}
	return summary, nil
}

// List retrieves up to limit summaries, most recently finished first.
func (s *RunSummaryStore) List(ctx context.Context, limit int) ([]*domain.RunSummary, error) {
	query := selectColumns + ` ORDER BY finished_at DESC, run_id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list run summaries: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}
	return out, nil
}

const selectColumns = `
	SELECT run_id, scenario, agent, seed,
		total_ticks, total_revenue, total_profit, total_units_sold,
		final_inventory_value, profit_margin,
		best_revenue_tick, best_revenue_delta, best_units_tick, best_units_delta,
		finished_at
	FROM run_summaries`

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*domain.RunSummary, error) {
	var r domain.RunSummary
	err := row.Scan(
		&r.RunID, &r.Scenario, &r.Agent, &r.Seed,
		&r.Summary.TotalTicks, &r.Summary.TotalRevenue, &r.Summary.TotalProfit, &r.Summary.TotalUnitsSold,
		&r.Summary.FinalInventoryValue, &r.Summary.ProfitMargin,
		&r.Highlights.BestRevenueTick, &r.Highlights.BestRevenueDelta,
		&r.Highlights.BestUnitsTick, &r.Highlights.BestUnitsDelta,
		&r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
