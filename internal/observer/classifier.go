// Package observer derives business events from consecutive simulation
// snapshots without retaining tick history.
package observer

import (
	"math"
	"sort"

	"storesim-observer/internal/domain"
)

// Classification thresholds.
const (
	// RevenueSurgeThreshold is the minimum single-tick revenue delta that
	// emits a RevenueSurge event.
	RevenueSurgeThreshold = 50.0

	// PriceEpsilon is the minimum absolute price move that counts as a
	// price change.
	PriceEpsilon = 1e-4

	// LowStockRatio is the inventory/baseline ratio at or below which a
	// product enters the low-stock episode.
	LowStockRatio = 0.12

	// LowStockClearRatio is the ratio at or above which the low-stock
	// latch releases. The gap to LowStockRatio prevents flapping.
	LowStockClearRatio = 0.25

	// VisualEventCap bounds the number of events per tick that are acted
	// upon visually. All events still reach the narration feed and the
	// highlight aggregator.
	VisualEventCap = 4
)

// Classifier compares consecutive snapshots per tracked entity and emits
// typed delta events.
type Classifier struct {
	state *State
}

// NewClassifier creates a classifier writing through the given state.
func NewClassifier(state *State) *Classifier {
	return &Classifier{state: state}
}

// State exposes the classifier's backing state for inspection and teardown.
func (c *Classifier) State() *State {
	return c.state
}

// Result carries the output of one classification cycle.
type Result struct {
	// Events in "most important first" order. Callers must process them
	// in this order; camera-focus semantics depend on it.
	Events []domain.DeltaEvent

	// RevenueDelta and UnitsDelta are the aggregate tick-over-tick deltas,
	// zero on the first tick of a run.
	RevenueDelta float64
	UnitsDelta   int

	// Restarted is true when the snapshot's tick number regressed and all
	// tracked state was reset before classification. Callers must reset
	// their own run-scoped state (highlights, feed) in response.
	Restarted bool
}

// Classify derives events for a snapshot and commits it as the new
// "previous" state. A tick number lower than the last seen tick is treated
// as a new run: all tracked state is reset first, then the snapshot is
// classified as if it were the first of a fresh run.
func (c *Classifier) Classify(snap domain.TickSnapshot) Result {
	restarted := false
	if c.state.hasPrev && snap.Tick < c.state.lastTick {
		c.state.Reset()
		restarted = true
	}

	res := c.preview(snap)
	res.Restarted = restarted
	c.commit(snap)
	return res
}

// Preview derives events for a snapshot without committing it. Feeding the
// same snapshot twice yields identical output. Tick regression handling is
// the caller's concern here; Preview diffs against current state as-is.
func (c *Classifier) Preview(snap domain.TickSnapshot) Result {
	return c.preview(snap)
}

// preview computes the full classification against current state, with no
// mutation.
func (c *Classifier) preview(snap domain.TickSnapshot) Result {
	var res Result

	if c.state.hasPrev {
		res.RevenueDelta = snap.Metrics.TotalRevenue - c.state.prevMetrics.TotalRevenue
		res.UnitsDelta = snap.Metrics.UnitsSold - c.state.prevMetrics.UnitsSold
	}

	if res.RevenueDelta >= RevenueSurgeThreshold {
		res.Events = append(res.Events, domain.DeltaEvent{
			Type:         domain.EventRevenueSurge,
			Tick:         snap.Tick,
			RevenueDelta: res.RevenueDelta,
		})
	}

	groups := c.classifyProducts(snap)
	for _, g := range groups {
		res.Events = append(res.Events, g.events...)
	}

	return res
}

// productGroup holds all events for one product plus the magnitude used
// for ordering.
type productGroup struct {
	asin      string
	magnitude int // |Δinventory|
	events    []domain.DeltaEvent
}

// classifyProducts diffs every product against its tracked previous values
// and returns event groups sorted by |Δinventory| descending, asin
// ascending as tie-break for deterministic output.
func (c *Classifier) classifyProducts(snap domain.TickSnapshot) []productGroup {
	groups := make([]productGroup, 0, len(snap.Products))

	for _, p := range snap.Products {
		g := productGroup{asin: p.ASIN}
		track, seen := c.state.products[p.ASIN]

		if seen {
			dInv := p.Inventory - track.prevInventory
			g.magnitude = abs(dInv)

			switch {
			case dInv < 0:
				g.events = append(g.events, domain.DeltaEvent{
					Type:   domain.EventSale,
					Tick:   snap.Tick,
					ASIN:   p.ASIN,
					Amount: -dInv,
				})
				if p.Inventory == 0 {
					g.events = append(g.events, domain.DeltaEvent{
						Type: domain.EventSoldOut,
						Tick: snap.Tick,
						ASIN: p.ASIN,
					})
				}
			case dInv > 0:
				g.events = append(g.events, domain.DeltaEvent{
					Type:   domain.EventRestock,
					Tick:   snap.Tick,
					ASIN:   p.ASIN,
					Amount: dInv,
				})
			}

			if math.Abs(p.Price-track.prevPrice) > PriceEpsilon {
				g.events = append(g.events, domain.DeltaEvent{
					Type:     domain.EventPriceChange,
					Tick:     snap.Tick,
					ASIN:     p.ASIN,
					OldPrice: track.prevPrice,
					NewPrice: p.Price,
				})
			}
		}

		if ev, ok := c.lowStockEvent(snap.Tick, p, track); ok {
			g.events = append(g.events, ev)
		}

		if len(g.events) > 0 {
			groups = append(groups, g)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].magnitude != groups[j].magnitude {
			return groups[i].magnitude > groups[j].magnitude
		}
		return groups[i].asin < groups[j].asin
	})

	return groups
}

// lowStockEvent applies the hysteresis band. At most one LowStock fires per
// episode: the latch sets on crossing LowStockRatio downward and releases
// only at or above LowStockClearRatio.
func (c *Classifier) lowStockEvent(tick int, p domain.ProductState, track *productTrack) (domain.DeltaEvent, bool) {
	baseline := baselineFor(p, track)
	latched := track != nil && track.lowStockLatched

	ratio := float64(p.Inventory) / float64(baseline)
	if ratio <= LowStockRatio && !latched {
		return domain.DeltaEvent{
			Type: domain.EventLowStock,
			Tick: tick,
			ASIN: p.ASIN,
		}, true
	}
	return domain.DeltaEvent{}, false
}

// commit records the snapshot as the new previous state for every tracked
// entity, including baseline capture for first-seen products and the
// low-stock latch transition.
func (c *Classifier) commit(snap domain.TickSnapshot) {
	c.state.hasPrev = true
	c.state.lastTick = snap.Tick
	c.state.prevMetrics = snap.Metrics

	for _, p := range snap.Products {
		track, seen := c.state.products[p.ASIN]
		if !seen {
			track = &productTrack{
				baselineInventory: maxInt(1, p.Inventory),
			}
			c.state.products[p.ASIN] = track
		}

		ratio := float64(p.Inventory) / float64(track.baselineInventory)
		switch {
		case ratio <= LowStockRatio:
			track.lowStockLatched = true
		case ratio >= LowStockClearRatio:
			track.lowStockLatched = false
		}

		track.prevInventory = p.Inventory
		track.prevPrice = p.Price
	}
}

// baselineFor resolves the baseline inventory for a product, using the
// tracked value when present and the first-sight rule otherwise.
func baselineFor(p domain.ProductState, track *productTrack) int {
	if track != nil {
		return track.baselineInventory
	}
	return maxInt(1, p.Inventory)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
