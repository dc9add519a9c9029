package domain

// EventType identifies the kind of tick-over-tick change.
type EventType string

// Event type constants.
const (
	EventRestock      EventType = "restock"
	EventSale         EventType = "sale"
	EventPriceChange  EventType = "price_change"
	EventSoldOut      EventType = "sold_out"
	EventLowStock     EventType = "low_stock"
	EventRevenueSurge EventType = "revenue_surge"
)

// DeltaEvent is a classified change between two consecutive snapshots.
// Which fields are meaningful depends on Type:
//   - Restock, Sale: ASIN + Amount (units moved, always positive)
//   - PriceChange: ASIN + OldPrice + NewPrice
//   - SoldOut, LowStock: ASIN
//   - RevenueSurge: RevenueDelta
//
// Events are generated fresh each tick, consumed immediately by the
// downstream sinks, and never persisted.
type DeltaEvent struct {
	Type         EventType
	Tick         int
	ASIN         string
	Amount       int
	OldPrice     float64
	NewPrice     float64
	RevenueDelta float64
}

// IsProductEvent reports whether the event references a single product.
func (e DeltaEvent) IsProductEvent() bool {
	return e.ASIN != ""
}
