package domain

// RunHighlights tracks the best single-tick deltas of a run.
// Updated incrementally in O(1) per tick; never recomputed by scanning
// tick history.
type RunHighlights struct {
	BestRevenueTick  int
	BestRevenueDelta float64
	BestUnitsTick    int
	BestUnitsDelta   int
}

// IsZero reports whether no tick has contributed to the highlights yet.
func (h RunHighlights) IsZero() bool {
	return h == RunHighlights{}
}
