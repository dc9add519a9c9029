package observer

import (
	"testing"

	"storesim-observer/internal/domain"
)

// Helper to build a snapshot with a single metric set and product list.
func makeSnapshot(tick int, revenue float64, units int, products ...domain.ProductState) domain.TickSnapshot {
	return domain.TickSnapshot{
		Tick: tick,
		Metrics: domain.Metrics{
			TotalRevenue: revenue,
			UnitsSold:    units,
		},
		Products: products,
	}
}

func product(asin string, inventory int, price float64) domain.ProductState {
	return domain.ProductState{ASIN: asin, Inventory: inventory, Price: price}
}

func eventsOfType(events []domain.DeltaEvent, typ domain.EventType) []domain.DeltaEvent {
	var out []domain.DeltaEvent
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestClassify_FirstTickEmitsNoDeltas(t *testing.T) {
	c := NewClassifier(NewState())

	res := c.Classify(makeSnapshot(1, 1000, 50, product("A1", 100, 9.99)))

	if res.RevenueDelta != 0 {
		t.Errorf("expected zero revenue delta on first tick, got %f", res.RevenueDelta)
	}
	if res.UnitsDelta != 0 {
		t.Errorf("expected zero units delta on first tick, got %d", res.UnitsDelta)
	}
	if len(res.Events) != 0 {
		t.Errorf("expected no events on first tick, got %v", res.Events)
	}
}

func TestClassify_SaleRestockPriceChange(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 0, 0, product("A1", 100, 9.99), product("B2", 10, 4.50)))

	res := c.Classify(makeSnapshot(2, 0, 0, product("A1", 95, 9.99), product("B2", 40, 4.25)))

	sales := eventsOfType(res.Events, domain.EventSale)
	if len(sales) != 1 || sales[0].ASIN != "A1" || sales[0].Amount != 5 {
		t.Errorf("expected Sale(A1, 5), got %v", sales)
	}

	restocks := eventsOfType(res.Events, domain.EventRestock)
	if len(restocks) != 1 || restocks[0].ASIN != "B2" || restocks[0].Amount != 30 {
		t.Errorf("expected Restock(B2, 30), got %v", restocks)
	}

	changes := eventsOfType(res.Events, domain.EventPriceChange)
	if len(changes) != 1 || changes[0].ASIN != "B2" {
		t.Fatalf("expected PriceChange for B2, got %v", changes)
	}
	if changes[0].OldPrice != 4.50 || changes[0].NewPrice != 4.25 {
		t.Errorf("expected price move 4.50 -> 4.25, got %f -> %f", changes[0].OldPrice, changes[0].NewPrice)
	}
}

func TestClassify_PriceEpsilonIgnoresNoise(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 0, 0, product("A1", 100, 9.99)))

	res := c.Classify(makeSnapshot(2, 0, 0, product("A1", 100, 9.99+5e-5)))

	if changes := eventsOfType(res.Events, domain.EventPriceChange); len(changes) != 0 {
		t.Errorf("expected sub-epsilon price move to be ignored, got %v", changes)
	}
}

func TestClassify_RevenueSurge(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 100, 0))

	res := c.Classify(makeSnapshot(2, 100+RevenueSurgeThreshold, 0))

	surges := eventsOfType(res.Events, domain.EventRevenueSurge)
	if len(surges) != 1 {
		t.Fatalf("expected one RevenueSurge at threshold, got %v", surges)
	}
	if surges[0].RevenueDelta != RevenueSurgeThreshold {
		t.Errorf("expected delta %f, got %f", RevenueSurgeThreshold, surges[0].RevenueDelta)
	}

	res = c.Classify(makeSnapshot(3, 100+RevenueSurgeThreshold+49.99, 0))
	if surges := eventsOfType(res.Events, domain.EventRevenueSurge); len(surges) != 0 {
		t.Errorf("expected no surge below threshold, got %v", surges)
	}
}

// End-to-end scenario from the product stream:
// tick 1 inv=100, tick 2 inv=40, tick 3 inv=0.
func TestClassify_SellThroughScenario(t *testing.T) {
	c := NewClassifier(NewState())

	res := c.Classify(makeSnapshot(1, 0, 0, product("A1", 100, 9.99)))
	if len(res.Events) != 0 {
		t.Fatalf("tick 1: expected no events, got %v", res.Events)
	}

	res = c.Classify(makeSnapshot(2, 0, 0, product("A1", 40, 9.99)))
	sales := eventsOfType(res.Events, domain.EventSale)
	if len(sales) != 1 || sales[0].Amount != 60 {
		t.Fatalf("tick 2: expected Sale(A1, 60), got %v", res.Events)
	}
	if soldOut := eventsOfType(res.Events, domain.EventSoldOut); len(soldOut) != 0 {
		t.Errorf("tick 2: unexpected SoldOut: %v", soldOut)
	}

	res = c.Classify(makeSnapshot(3, 0, 0, product("A1", 0, 9.99)))
	sales = eventsOfType(res.Events, domain.EventSale)
	if len(sales) != 1 || sales[0].Amount != 40 {
		t.Errorf("tick 3: expected Sale(A1, 40), got %v", sales)
	}
	if soldOut := eventsOfType(res.Events, domain.EventSoldOut); len(soldOut) != 1 {
		t.Errorf("tick 3: expected SoldOut(A1), got %v", res.Events)
	}
}

func TestClassify_LowStockHysteresis(t *testing.T) {
	c := NewClassifier(NewState())

	// Baseline 100. Ratio path: 1.0 → 0.10 (fires) → 0.15 (latched, quiet)
	// → 0.11 (still latched) → 0.30 (clears) → 0.10 (fires again).
	inventories := []int{100, 10, 15, 11, 30, 10}
	var lowStockTicks []int

	for i, inv := range inventories {
		tick := i + 1
		res := c.Classify(makeSnapshot(tick, 0, 0, product("A1", inv, 9.99)))
		for range eventsOfType(res.Events, domain.EventLowStock) {
			lowStockTicks = append(lowStockTicks, tick)
		}
	}

	if len(lowStockTicks) != 2 || lowStockTicks[0] != 2 || lowStockTicks[1] != 6 {
		t.Errorf("expected LowStock at ticks [2 6], got %v", lowStockTicks)
	}
}

func TestClassify_LowStockInsideBandStaysQuiet(t *testing.T) {
	c := NewClassifier(NewState())

	// Recovery into the 0.12..0.25 band must not release the latch.
	inventories := []int{100, 10, 20, 13, 24, 10}
	total := 0
	for i, inv := range inventories {
		res := c.Classify(makeSnapshot(i+1, 0, 0, product("A1", inv, 9.99)))
		total += len(eventsOfType(res.Events, domain.EventLowStock))
	}

	if total != 1 {
		t.Errorf("expected exactly one LowStock across the episode, got %d", total)
	}
}

func TestClassify_TickRegressionResetsState(t *testing.T) {
	c := NewClassifier(NewState())

	c.Classify(makeSnapshot(5, 500, 20, product("A1", 50, 9.99)))

	res := c.Classify(makeSnapshot(2, 100, 5, product("A1", 80, 9.99)))
	if !res.Restarted {
		t.Fatal("expected Restarted on tick regression")
	}
	// After reset this is the first tick of a fresh run: no deltas.
	if len(res.Events) != 0 {
		t.Errorf("expected no events after reset, got %v", res.Events)
	}
	if res.RevenueDelta != 0 || res.UnitsDelta != 0 {
		t.Errorf("expected zero aggregate deltas after reset, got %f/%d", res.RevenueDelta, res.UnitsDelta)
	}

	// Baseline must come from the post-reset first sight, not the old run.
	if baseline, ok := c.State().Baseline("A1"); !ok || baseline != 80 {
		t.Errorf("expected fresh baseline 80, got %d (ok=%v)", baseline, ok)
	}
}

func TestPreview_Deterministic(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 100, 10, product("A1", 100, 9.99), product("B2", 50, 4.50)))

	next := makeSnapshot(2, 180, 25, product("A1", 70, 9.49), product("B2", 0, 4.50))

	first := c.Preview(next)
	second := c.Preview(next)

	if len(first.Events) != len(second.Events) {
		t.Fatalf("preview not deterministic: %d vs %d events", len(first.Events), len(second.Events))
	}
	for i := range first.Events {
		if first.Events[i] != second.Events[i] {
			t.Errorf("event %d differs: %v vs %v", i, first.Events[i], second.Events[i])
		}
	}
	if first.RevenueDelta != second.RevenueDelta || first.UnitsDelta != second.UnitsDelta {
		t.Error("aggregate deltas differ between previews")
	}
}

func TestClassify_OrderingByInventoryMagnitude(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 0, 0,
		product("A1", 100, 1), product("B2", 100, 1), product("C3", 100, 1)))

	res := c.Classify(makeSnapshot(2, 0, 0,
		product("A1", 95, 1), product("B2", 10, 1), product("C3", 60, 1)))

	var order []string
	for _, e := range res.Events {
		if e.Type == domain.EventSale {
			order = append(order, e.ASIN)
		}
	}

	want := []string{"B2", "C3", "A1"}
	if len(order) != len(want) {
		t.Fatalf("expected %d sales, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s (order %v)", i, want[i], order[i], order)
		}
	}
}

func TestClassify_ProductEventsStayGrouped(t *testing.T) {
	c := NewClassifier(NewState())
	c.Classify(makeSnapshot(1, 0, 0, product("A1", 100, 1), product("B2", 100, 1)))

	// B2 sells out (larger move), A1 has a small sale. SoldOut must
	// directly follow its product's Sale, ahead of the smaller group.
	res := c.Classify(makeSnapshot(2, 0, 0, product("A1", 97, 1), product("B2", 0, 1)))

	if len(res.Events) < 3 {
		t.Fatalf("expected at least 3 events, got %v", res.Events)
	}
	if res.Events[0].Type != domain.EventSale || res.Events[0].ASIN != "B2" {
		t.Errorf("expected leading Sale(B2), got %v", res.Events[0])
	}
	if res.Events[1].Type != domain.EventSoldOut || res.Events[1].ASIN != "B2" {
		t.Errorf("expected SoldOut(B2) second, got %v", res.Events[1])
	}
}
