// Package highlights maintains running best-of-run statistics in a single
// pass, without storing tick history.
package highlights

import "storesim-observer/internal/domain"

// Aggregator tracks the best single-tick revenue and units deltas of a run.
// Update and Summary are O(1); run length is unbounded so the summary must
// be available immediately on the finished signal without a scan.
type Aggregator struct {
	initialized bool
	best        domain.RunHighlights
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Update folds one tick's deltas into the running maxima.
func (a *Aggregator) Update(tick int, revenueDelta float64, unitsDelta int) {
	if !a.initialized {
		a.initialized = true
	}
	if revenueDelta > a.best.BestRevenueDelta {
		a.best.BestRevenueDelta = revenueDelta
		a.best.BestRevenueTick = tick
	}
	if unitsDelta > a.best.BestUnitsDelta {
		a.best.BestUnitsDelta = unitsDelta
		a.best.BestUnitsTick = tick
	}
}

// Summary returns the current highlights.
func (a *Aggregator) Summary() domain.RunHighlights {
	return a.best
}

// Initialized reports whether any tick has been folded in.
func (a *Aggregator) Initialized() bool {
	return a.initialized
}

// Reset clears the running state. Called on stop and on run restart.
func (a *Aggregator) Reset() {
	a.initialized = false
	a.best = domain.RunHighlights{}
}

// TickPoint is one historical tick used by the recovery scan.
type TickPoint struct {
	Tick         int
	TotalRevenue float64
	UnitsSold    int
}

// RecoverFromHistory rebuilds highlights by scanning retained history with
// the same per-tick delta formula the incremental path uses. This is the
// graceful-degradation path for a client that attached mid-run and never
// initialized incremental state; the incremental path stays primary.
// Points must be ordered by tick ascending.
func RecoverFromHistory(points []TickPoint) domain.RunHighlights {
	agg := NewAggregator()
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		agg.Update(curr.Tick,
			curr.TotalRevenue-prev.TotalRevenue,
			curr.UnitsSold-prev.UnitsSold)
	}
	return agg.Summary()
}
