package observer

import "storesim-observer/internal/domain"

// productTrack holds the per-product state retained between ticks.
// Exactly one previous value is kept per tracked field; deltas are always
// computed against the immediately preceding tick.
type productTrack struct {
	prevInventory int
	prevPrice     float64

	// baselineInventory is the first-observed inventory, floored at 1.
	// It normalizes visual scale and anchors low-stock detection.
	baselineInventory int

	// lowStockLatched debounces LowStock: once fired, the flag holds until
	// the inventory ratio recovers above the clear threshold.
	lowStockLatched bool
}

// State is the mutable observer state owned by a single session.
// It is constructed fresh per session, mutated only from the tick-processing
// goroutine, and torn down on stop. No locking: correctness depends on the
// transport delivering tick messages in order to one consumer.
type State struct {
	hasPrev     bool
	lastTick    int
	prevMetrics domain.Metrics
	products    map[string]*productTrack
}

// NewState creates an empty observer state.
func NewState() *State {
	return &State{
		products: make(map[string]*productTrack),
	}
}

// Reset clears all tracked entities and previous aggregates.
// Called on stop and when a tick regression signals a backend restart.
func (s *State) Reset() {
	s.hasPrev = false
	s.lastTick = 0
	s.prevMetrics = domain.Metrics{}
	s.products = make(map[string]*productTrack)
}

// LastTick returns the most recently committed tick number.
// The second result is false before the first snapshot is committed.
func (s *State) LastTick() (int, bool) {
	return s.lastTick, s.hasPrev
}

// TrackedProducts returns the number of products with retained state.
func (s *State) TrackedProducts() int {
	return len(s.products)
}

// Baseline returns the recorded baseline inventory for an asin.
// The second result is false if the asin has never been seen.
func (s *State) Baseline(asin string) (int, bool) {
	track, ok := s.products[asin]
	if !ok {
		return 0, false
	}
	return track.baselineInventory, true
}
