package feed

import (
	"strings"
	"testing"

	"storesim-observer/internal/domain"
)

func TestFeed_BoundedEviction(t *testing.T) {
	f := New(3)

	for tick := 1; tick <= 5; tick++ {
		f.Append(domain.DeltaEvent{Type: domain.EventSale, Tick: tick, ASIN: "A1", Amount: 1})
	}

	entries := f.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(entries))
	}
	if entries[0].Tick != 3 || entries[2].Tick != 5 {
		t.Errorf("expected ticks 3..5, got %d..%d", entries[0].Tick, entries[2].Tick)
	}
}

func TestFeed_Reset(t *testing.T) {
	f := New(10)
	f.Append(domain.DeltaEvent{Type: domain.EventSoldOut, Tick: 1, ASIN: "A1"})

	f.Reset()

	if f.Len() != 0 {
		t.Errorf("expected empty feed after reset, got %d entries", f.Len())
	}
}

func TestNarrate(t *testing.T) {
	tests := []struct {
		event domain.DeltaEvent
		want  string
	}{
		{domain.DeltaEvent{Type: domain.EventSale, ASIN: "A1", Amount: 4}, "Sold 4× A1"},
		{domain.DeltaEvent{Type: domain.EventRestock, ASIN: "B2", Amount: 30}, "Restocked 30× B2"},
		{domain.DeltaEvent{Type: domain.EventSoldOut, ASIN: "A1"}, "A1 sold out!"},
		{domain.DeltaEvent{Type: domain.EventLowStock, ASIN: "C3"}, "C3 running low"},
		{domain.DeltaEvent{Type: domain.EventRevenueSurge, RevenueDelta: 75.5}, "Revenue surge: +$75.50"},
	}

	for _, tt := range tests {
		if got := Narrate(tt.event); got != tt.want {
			t.Errorf("Narrate(%s): expected %q, got %q", tt.event.Type, tt.want, got)
		}
	}
}

func TestNarrate_PriceDirection(t *testing.T) {
	cut := Narrate(domain.DeltaEvent{Type: domain.EventPriceChange, ASIN: "A1", OldPrice: 9.99, NewPrice: 9.49})
	if !strings.Contains(cut, "cut") {
		t.Errorf("expected price cut narration, got %q", cut)
	}
	raise := Narrate(domain.DeltaEvent{Type: domain.EventPriceChange, ASIN: "A1", OldPrice: 9.49, NewPrice: 9.99})
	if !strings.Contains(raise, "raised") {
		t.Errorf("expected price raise narration, got %q", raise)
	}
}
