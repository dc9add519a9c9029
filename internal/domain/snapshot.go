package domain

// TickSnapshot is the full simulation state delivered for one tick.
// Immutable once decoded; the classifier owns it for a single comparison
// cycle and retains nothing beyond per-entity "previous" values.
type TickSnapshot struct {
	Tick        int
	Metrics     Metrics
	Products    []ProductState
	Agents      []AgentState
	Competitors []CompetitorState
	Heatmap     []HeatPoint
}

// Metrics holds the aggregate business metrics of a snapshot.
type Metrics struct {
	TotalRevenue   float64
	TotalProfit    float64
	UnitsSold      int
	InventoryCount int
	PendingOrders  int
}

// ProductState describes one listed product at a given tick.
type ProductState struct {
	ASIN      string  // unique product identifier
	Inventory int     // units on hand, >= 0
	Price     float64 // listing price, >= 0
}

// AgentState describes one AI agent running the storefront.
type AgentState struct {
	ID     string
	Name   string
	Status string
}

// CompetitorState describes one simulated competitor.
type CompetitorState struct {
	ID    string
	Name  string
	Price float64
}

// HeatPoint is one cell of the customer-activity heatmap.
type HeatPoint struct {
	X         int
	Y         int
	Intensity float64
}
