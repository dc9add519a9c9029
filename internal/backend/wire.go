package backend

import (
	"encoding/json"
	"fmt"

	"storesim-observer/internal/domain"
)

// MessageKind discriminates envelopes on the live channel.
type MessageKind string

// Live channel message kinds.
const (
	KindTick         MessageKind = "tick"
	KindFinished     MessageKind = "finished"
	KindDisconnected MessageKind = "disconnected"
)

// Envelope is one in-order delivery from the live channel. Exactly one
// payload field is meaningful, selected by Kind. Disconnected carries
// the transport error that ended the stream.
type Envelope struct {
	Kind     MessageKind
	Tick     domain.TickSnapshot
	Finished domain.FinishedSummary
	Err      error
}

// Wire-level message shapes. Absent numeric fields decode to zero and
// absent arrays to nil; normalization to empty slices happens here so
// downstream code never sees a nil collection.

type wireEnvelope struct {
	Type string `json:"type"`
}

type wireTick struct {
	Tick    int         `json:"tick"`
	Metrics wireMetrics `json:"metrics"`

	Products    []wireProduct    `json:"products"`
	Agents      []wireAgent      `json:"agents"`
	Competitors []wireCompetitor `json:"competitors"`
	Heatmap     []wireHeatPoint  `json:"heatmap"`
}

type wireMetrics struct {
	TotalRevenue   float64 `json:"total_revenue"`
	TotalProfit    float64 `json:"total_profit"`
	UnitsSold      int     `json:"units_sold"`
	InventoryCount int     `json:"inventory_count"`
	PendingOrders  int     `json:"pending_orders"`
}

type wireProduct struct {
	ASIN      string  `json:"asin"`
	Inventory int     `json:"inventory"`
	Price     float64 `json:"price"`
}

type wireAgent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type wireCompetitor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type wireHeatPoint struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float64 `json:"intensity"`
}

type wireFinished struct {
	TotalTicks          int     `json:"total_ticks"`
	TotalRevenue        float64 `json:"total_revenue"`
	TotalProfit         float64 `json:"total_profit"`
	TotalUnitsSold      int     `json:"total_units_sold"`
	FinalInventoryValue float64 `json:"final_inventory_value"`
	ProfitMargin        float64 `json:"profit_margin"`
}

// decodeEnvelope parses one raw live-channel message. Unknown message
// types yield ok=false and are skipped by the reader.
func decodeEnvelope(data []byte) (Envelope, bool, error) {
	var head wireEnvelope
	if err := json.Unmarshal(data, &head); err != nil {
		return Envelope{}, false, fmt.Errorf("decode envelope: %w", err)
	}

	switch head.Type {
	case "tick":
		var wt wireTick
		if err := json.Unmarshal(data, &wt); err != nil {
			return Envelope{}, false, fmt.Errorf("decode tick: %w", err)
		}
		return Envelope{Kind: KindTick, Tick: snapshotFromWire(wt)}, true, nil
	case "finished":
		var wf wireFinished
		if err := json.Unmarshal(data, &wf); err != nil {
			return Envelope{}, false, fmt.Errorf("decode finished: %w", err)
		}
		return Envelope{Kind: KindFinished, Finished: domain.FinishedSummary(wf)}, true, nil
	default:
		return Envelope{}, false, nil
	}
}

func snapshotFromWire(wt wireTick) domain.TickSnapshot {
	snap := domain.TickSnapshot{
		Tick:        wt.Tick,
		Metrics:     domain.Metrics(wt.Metrics),
		Products:    make([]domain.ProductState, 0, len(wt.Products)),
		Agents:      make([]domain.AgentState, 0, len(wt.Agents)),
		Competitors: make([]domain.CompetitorState, 0, len(wt.Competitors)),
		Heatmap:     make([]domain.HeatPoint, 0, len(wt.Heatmap)),
	}
	for _, p := range wt.Products {
		snap.Products = append(snap.Products, domain.ProductState(p))
	}
	for _, a := range wt.Agents {
		snap.Agents = append(snap.Agents, domain.AgentState(a))
	}
	for _, c := range wt.Competitors {
		snap.Competitors = append(snap.Competitors, domain.CompetitorState(c))
	}
	for _, h := range wt.Heatmap {
		snap.Heatmap = append(snap.Heatmap, domain.HeatPoint(h))
	}
	return snap
}
