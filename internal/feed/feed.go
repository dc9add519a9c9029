// Package feed renders a bounded, human-readable rolling log of classified
// events, shared by the normal and presentation view modes.
package feed

import (
	"fmt"

	"storesim-observer/internal/domain"
)

// DefaultCapacity is the number of entries retained when none is given.
const DefaultCapacity = 50

// Entry is one rendered line of the narration feed.
type Entry struct {
	Tick int
	Text string
}

// Feed is a bounded rolling log. Appending past capacity evicts the oldest
// entry. Feed is a pure consumer of events and holds no classifier state.
type Feed struct {
	capacity int
	entries  []Entry
}

// New creates a feed retaining at most capacity entries.
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{capacity: capacity}
}

// Append renders the event and pushes it onto the log.
func (f *Feed) Append(event domain.DeltaEvent) {
	f.entries = append(f.entries, Entry{Tick: event.Tick, Text: Narrate(event)})
	if len(f.entries) > f.capacity {
		f.entries = f.entries[len(f.entries)-f.capacity:]
	}
}

// Entries returns the retained entries, oldest first.
func (f *Feed) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of retained entries.
func (f *Feed) Len() int {
	return len(f.entries)
}

// Reset drops all entries. Called when a new run starts.
func (f *Feed) Reset() {
	f.entries = f.entries[:0]
}

// Narrate renders one event as a human-readable line.
func Narrate(event domain.DeltaEvent) string {
	switch event.Type {
	case domain.EventSale:
		return fmt.Sprintf("Sold %d× %s", event.Amount, event.ASIN)
	case domain.EventRestock:
		return fmt.Sprintf("Restocked %d× %s", event.Amount, event.ASIN)
	case domain.EventPriceChange:
		if event.NewPrice < event.OldPrice {
			return fmt.Sprintf("%s price cut $%.2f → $%.2f", event.ASIN, event.OldPrice, event.NewPrice)
		}
		return fmt.Sprintf("%s price raised $%.2f → $%.2f", event.ASIN, event.OldPrice, event.NewPrice)
	case domain.EventSoldOut:
		return fmt.Sprintf("%s sold out!", event.ASIN)
	case domain.EventLowStock:
		return fmt.Sprintf("%s running low", event.ASIN)
	case domain.EventRevenueSurge:
		return fmt.Sprintf("Revenue surge: +$%.2f", event.RevenueDelta)
	default:
		return string(event.Type)
	}
}
