package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/observer"
	"storesim-observer/internal/storage"
)

// TickHandler consumes replayed snapshots. Implemented by
// engine.Engine.
type TickHandler interface {
	HandleTick(ctx context.Context, snap domain.TickSnapshot) observer.Result
	HandleFinished(ctx context.Context, fin domain.FinishedSummary) (*domain.RunSummary, error)
}

// PlayerConfig configures playback pacing.
type PlayerConfig struct {
	// Speed is ticks per second. Zero or negative plays back without
	// delay, for tests and batch re-analysis.
	Speed float64
	// EndcardHold is how long the final summary stays up before Play
	// returns.
	EndcardHold time.Duration

	Verbose bool
}

// Player reads an archived run and drives the observer pipeline with
// it, reproducing the original event stream deterministically.
type Player struct {
	store   storage.TickArchiveStore
	handler TickHandler
	config  PlayerConfig
}

// NewPlayer creates a player reading from store and feeding handler.
func NewPlayer(store storage.TickArchiveStore, handler TickHandler, config PlayerConfig) *Player {
	return &Player{
		store:   store,
		handler: handler,
		config:  config,
	}
}

// Play replays the run's archived ticks in order, then synthesizes the
// finished summary from the final tick and holds the end card.
func (p *Player) Play(ctx context.Context, runID string) (*domain.RunSummary, error) {
	ticks, err := p.store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading archive for run %s: %w", runID, err)
	}
	if len(ticks) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	var interval time.Duration
	if p.config.Speed > 0 {
		interval = time.Duration(float64(time.Second) / p.config.Speed)
	}

	if p.config.Verbose {
		log.Printf("[replay] playing run %s: %d ticks", runID, len(ticks))
	}

	for i, at := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.handler.HandleTick(ctx, domain.TickSnapshot{
			Tick:        at.Tick,
			Metrics:     at.Metrics,
			Products:    at.Products,
			Agents:      []domain.AgentState{},
			Competitors: []domain.CompetitorState{},
			Heatmap:     []domain.HeatPoint{},
		})

		if interval > 0 && i < len(ticks)-1 {
			if err := sleep(ctx, interval); err != nil {
				return nil, err
			}
		}
	}

	last := ticks[len(ticks)-1]
	summary, err := p.handler.HandleFinished(ctx, synthesizeFinished(ticks, last))
	if err != nil {
		return nil, err
	}

	if p.config.EndcardHold > 0 {
		if err := sleep(ctx, p.config.EndcardHold); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// synthesizeFinished rebuilds the terminal totals from the archive.
// The live finished message is not archived; the final tick's running
// totals carry the same information.
func synthesizeFinished(ticks []*domain.ArchivedTick, last *domain.ArchivedTick) domain.FinishedSummary {
	fin := domain.FinishedSummary{
		TotalTicks:     len(ticks),
		TotalRevenue:   last.Metrics.TotalRevenue,
		TotalProfit:    last.Metrics.TotalProfit,
		TotalUnitsSold: last.Metrics.UnitsSold,
	}
	for _, p := range last.Products {
		fin.FinalInventoryValue += float64(p.Inventory) * p.Price
	}
	if fin.TotalRevenue != 0 {
		fin.ProfitMargin = fin.TotalProfit / fin.TotalRevenue
	}
	return fin
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
