package clickhouse

import (
	"context"
	"fmt"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/storage"
)

// TickArchiveStore implements storage.TickArchiveStore using ClickHouse.
// Metric rows live in tick_archive, per-product rows in
// tick_archive_products, both ordered by (run_id, tick).
type TickArchiveStore struct {
	conn *Conn
}

// NewTickArchiveStore creates a new TickArchiveStore.
func NewTickArchiveStore(conn *Conn) *TickArchiveStore {
	return &TickArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickArchiveStore = (*TickArchiveStore)(nil)

// InsertTicks adds recorded ticks. Fails the entire batch on any duplicate
// (run_id, tick). MergeTree does not enforce uniqueness at insert time, so
// duplicates are rejected by explicit checks before the batch is sent.
func (s *TickArchiveStore) InsertTicks(ctx context.Context, ticks []*domain.ArchivedTick) error {
	if len(ticks) == 0 {
		return nil
	}

	type key struct {
		runID string
		tick  int
	}
	seen := make(map[key]struct{}, len(ticks))
	for _, t := range ticks {
		if t == nil || t.RunID == "" || t.Tick < 0 {
			return storage.ErrInvalidInput
		}
		k := key{t.RunID, t.Tick}
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, t := range ticks {
		exists, err := s.exists(ctx, t.RunID, t.Tick)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	if err := s.sendMetricRows(ctx, ticks); err != nil {
		return err
	}
	return s.sendProductRows(ctx, ticks)
}

func (s *TickArchiveStore) sendMetricRows(ctx context.Context, ticks []*domain.ArchivedTick) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tick_archive (
			run_id, tick, total_revenue, total_profit,
			units_sold, inventory_count, pending_orders, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare tick batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.RunID, uint32(t.Tick),
			t.Metrics.TotalRevenue, t.Metrics.TotalProfit,
			int32(t.Metrics.UnitsSold), int32(t.Metrics.InventoryCount),
			int32(t.Metrics.PendingOrders), uint64(t.RecordedAt),
		)
		if err != nil {
			return fmt.Errorf("append tick to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send tick batch: %w", err)
	}
	return nil
}

func (s *TickArchiveStore) sendProductRows(ctx context.Context, ticks []*domain.ArchivedTick) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tick_archive_products (run_id, tick, asin, inventory, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare product batch: %w", err)
	}

	for _, t := range ticks {
		for _, p := range t.Products {
			err = batch.Append(t.RunID, uint32(t.Tick), p.ASIN, int32(p.Inventory), p.Price)
			if err != nil {
				return fmt.Errorf("append product to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send product batch: %w", err)
	}
	return nil
}

// exists checks whether a (run_id, tick) row is already archived.
func (s *TickArchiveStore) exists(ctx context.Context, runID string, tick int) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM tick_archive WHERE run_id = ? AND tick = ?`,
		runID, uint32(tick),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByRunID retrieves all archived ticks for a run, ordered by tick ASC,
// with product rows re-attached.
func (s *TickArchiveStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ArchivedTick, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT tick, total_revenue, total_profit,
			units_sold, inventory_count, pending_orders, recorded_at
		FROM tick_archive
		WHERE run_id = ?
		ORDER BY tick ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tick archive: %w", err)
	}
	defer rows.Close()

	var out []*domain.ArchivedTick
	byTick := make(map[int]*domain.ArchivedTick)
	for rows.Next() {
		var (
			tick                      uint32
			revenue, profit           float64
			units, inventory, pending int32
			recordedAt                uint64
		)
		if err := rows.Scan(&tick, &revenue, &profit, &units, &inventory, &pending, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan tick archive row: %w", err)
		}
		t := &domain.ArchivedTick{
			RunID: runID,
			Tick:  int(tick),
			Metrics: domain.Metrics{
				TotalRevenue:   revenue,
				TotalProfit:    profit,
				UnitsSold:      int(units),
				InventoryCount: int(inventory),
				PendingOrders:  int(pending),
			},
			RecordedAt: int64(recordedAt),
		}
		out = append(out, t)
		byTick[t.Tick] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick archive: %w", err)
	}

	if len(out) == 0 {
		return nil, nil
	}

	if err := s.attachProducts(ctx, runID, byTick); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TickArchiveStore) attachProducts(ctx context.Context, runID string, byTick map[int]*domain.ArchivedTick) error {
	rows, err := s.conn.Query(ctx, `
		SELECT tick, asin, inventory, price
		FROM tick_archive_products
		WHERE run_id = ?
		ORDER BY tick ASC, asin ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query tick archive products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tick      uint32
			asin      string
			inventory int32
			price     float64
		)
		if err := rows.Scan(&tick, &asin, &inventory, &price); err != nil {
			return fmt.Errorf("scan product row: %w", err)
		}
		if t, ok := byTick[int(tick)]; ok {
			t.Products = append(t.Products, domain.ProductState{
				ASIN:      asin,
				Inventory: int(inventory),
				Price:     price,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate product rows: %w", err)
	}
	return nil
}
