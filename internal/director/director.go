// Package director consumes classified delta events, schedules time-bounded
// visual effects, and arbitrates camera focus by priority and cooldown.
package director

import (
	"sync"
	"time"

	"storesim-observer/internal/domain"
	"storesim-observer/internal/observability"
)

// Default tuning.
const (
	DefaultMaxVisualEvents = 4
	DefaultFocusCooldown   = 2 // ticks between camera focus changes
	DefaultFocusDuration   = 1200 * time.Millisecond
	DefaultFocusZoom       = 2.2
	DefaultFlowDuration    = 900 * time.Millisecond
	DefaultFlashDuration   = 600 * time.Millisecond
	DefaultCalloutDuration = 1500 * time.Millisecond
)

// Config tunes the director.
type Config struct {
	// MaxVisualEvents bounds the number of events per tick that trigger
	// visual effects. Zero means DefaultMaxVisualEvents.
	MaxVisualEvents int

	// FocusCooldownTicks is the minimum number of ticks between camera
	// focus changes. Zero means DefaultFocusCooldown.
	FocusCooldownTicks int

	FocusDuration   time.Duration
	FocusZoom       float64
	FlowDuration    time.Duration
	FlashDuration   time.Duration
	CalloutDuration time.Duration

	// Presentation enables camera focus requests. Effects run in both
	// modes; only the camera is presentation-gated.
	Presentation bool
}

func (c *Config) applyDefaults() {
	if c.MaxVisualEvents <= 0 {
		c.MaxVisualEvents = DefaultMaxVisualEvents
	}
	if c.FocusCooldownTicks <= 0 {
		c.FocusCooldownTicks = DefaultFocusCooldown
	}
	if c.FocusDuration <= 0 {
		c.FocusDuration = DefaultFocusDuration
	}
	if c.FocusZoom <= 0 {
		c.FocusZoom = DefaultFocusZoom
	}
	if c.FlowDuration <= 0 {
		c.FlowDuration = DefaultFlowDuration
	}
	if c.FlashDuration <= 0 {
		c.FlashDuration = DefaultFlashDuration
	}
	if c.CalloutDuration <= 0 {
		c.CalloutDuration = DefaultCalloutDuration
	}
}

// Director drives a Stage and Camera from classified events. It is a pure
// consumer: it never mutates classifier or aggregator state. OnTick must be
// called from the single tick-processing goroutine; effect completion runs
// on scheduler callbacks that only touch the stage, never shared state.
type Director struct {
	stage     Stage
	camera    Camera
	scheduler Scheduler
	cfg       Config

	nextEffectID EffectID

	// Effect handles pending completion, keyed by id. Completion callbacks
	// remove their own entry; Stop drops all entries after cancelling the
	// scheduled callbacks. Guarded by pendingMu because completion runs on
	// scheduler goroutines while OnTick runs on the tick goroutine.
	pendingMu sync.Mutex
	pending   map[EffectID]func()

	// Camera arbitration state.
	hasFocused    bool
	lastFocusTick int
}

// New creates a director. Stage and camera must be non-nil; cfg zero values
// fall back to defaults.
func New(stage Stage, camera Camera, scheduler Scheduler, cfg Config) *Director {
	cfg.applyDefaults()
	return &Director{
		stage:     stage,
		camera:    camera,
		scheduler: scheduler,
		cfg:       cfg,
		pending:   make(map[EffectID]func()),
	}
}

// SetPresentation toggles presentation mode at runtime.
func (d *Director) SetPresentation(on bool) {
	d.cfg.Presentation = on
}

// Presentation reports whether presentation mode is active.
func (d *Director) Presentation() bool {
	return d.cfg.Presentation
}

// InFlight returns the number of effects pending completion.
func (d *Director) InFlight() int {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending)
}

// OnTick consumes one tick's events, already ordered most-important-first.
// At most MaxVisualEvents trigger effects; the camera focuses on the
// highest-priority product event, subject to the focus cooldown.
func (d *Director) OnTick(tick int, events []domain.DeltaEvent) {
	acted, dropped := 0, 0
	for _, ev := range events {
		if acted >= d.cfg.MaxVisualEvents {
			dropped++
			continue
		}
		if d.applyEffect(ev) {
			acted++
		}
	}
	if dropped > 0 {
		observability.RecordEventsDropped(dropped)
	}

	if d.cfg.Presentation {
		d.arbitrateCamera(tick, events)
	}
}

// applyEffect schedules the visual effect for one event. Returns false for
// events with no visual treatment.
func (d *Director) applyEffect(ev domain.DeltaEvent) bool {
	if ev.IsProductEvent() {
		// Lazy creation: an event referencing an undrawn product is never
		// dropped.
		d.stage.EnsureProduct(ev.ASIN)
	}

	switch ev.Type {
	case domain.EventSale:
		id := d.allocate()
		d.stage.BeginPackageFlow(id, ZoneShelf, ZoneCheckout, ev.ASIN)
		d.schedule(id, d.cfg.FlowDuration, func() { d.stage.EndPackageFlow(id) })
	case domain.EventRestock:
		id := d.allocate()
		d.stage.BeginPackageFlow(id, ZoneInboundDock, ZoneShelf, ev.ASIN)
		d.schedule(id, d.cfg.FlowDuration, func() { d.stage.EndPackageFlow(id) })
	case domain.EventSoldOut:
		flash := d.allocate()
		d.stage.BeginZoneFlash(flash, ZoneShelf)
		d.schedule(flash, d.cfg.FlashDuration, func() { d.stage.EndZoneFlash(flash) })
		callout := d.allocate()
		d.stage.ShowCallout(callout, ev.ASIN, "SOLD OUT")
		d.schedule(callout, d.cfg.CalloutDuration, func() { d.stage.HideCallout(callout) })
	case domain.EventLowStock:
		id := d.allocate()
		d.stage.ShowCallout(id, ev.ASIN, "LOW STOCK")
		d.schedule(id, d.cfg.CalloutDuration, func() { d.stage.HideCallout(id) })
	case domain.EventPriceChange:
		id := d.allocate()
		d.stage.ShowCallout(id, ev.ASIN, feedPriceText(ev))
		d.schedule(id, d.cfg.CalloutDuration, func() { d.stage.HideCallout(id) })
	case domain.EventRevenueSurge:
		id := d.allocate()
		d.stage.BeginZoneFlash(id, ZoneCheckout)
		d.schedule(id, d.cfg.FlashDuration, func() { d.stage.EndZoneFlash(id) })
	default:
		return false
	}
	observability.RecordEffectStarted(string(ev.Type))
	return true
}

// arbitrateCamera picks at most one focus target per tick: the
// highest-priority product event. Re-focusing requires the cooldown to have
// elapsed since the last focus change, which suppresses jitter from noisy
// per-tick events.
func (d *Director) arbitrateCamera(tick int, events []domain.DeltaEvent) {
	if d.hasFocused && tick-d.lastFocusTick < d.cfg.FocusCooldownTicks {
		return
	}

	best, bestPriority := "", 0
	for _, ev := range events {
		if !ev.IsProductEvent() {
			continue
		}
		if p := focusPriority(ev.Type); p > bestPriority {
			best, bestPriority = ev.ASIN, p
		}
	}
	if best == "" {
		return
	}

	d.camera.Focus(FocusRequest{
		ASIN:     best,
		Zoom:     d.cfg.FocusZoom,
		Duration: d.cfg.FocusDuration,
	})
	d.hasFocused = true
	d.lastFocusTick = tick
	observability.RecordFocusChange()
}

// focusPriority ranks event types for camera focus.
// SoldOut/LowStock > Sale > Restock/PriceChange.
func focusPriority(typ domain.EventType) int {
	switch typ {
	case domain.EventSoldOut, domain.EventLowStock:
		return 3
	case domain.EventSale:
		return 2
	case domain.EventRestock, domain.EventPriceChange:
		return 1
	default:
		return 0
	}
}

// allocate hands out the next effect id.
func (d *Director) allocate() EffectID {
	d.nextEffectID++
	return d.nextEffectID
}

// schedule registers a completion callback for an effect. The callback
// removes its own handle; the effect frees its visual resource on
// completion rather than relying on the stage to poll.
func (d *Director) schedule(id EffectID, duration time.Duration, complete func()) {
	d.pendingMu.Lock()
	d.pending[id] = d.scheduler.After(duration, func() {
		d.pendingMu.Lock()
		delete(d.pending, id)
		d.pendingMu.Unlock()
		complete()
	})
	d.pendingMu.Unlock()
}

// Stop cancels all scheduled effect completions and drops their handles.
// Effects already rendered may finish cosmetically on the stage; none of
// their callbacks will touch observer state after Stop returns.
func (d *Director) Stop() {
	d.scheduler.CancelAll()
	d.pendingMu.Lock()
	for id := range d.pending {
		delete(d.pending, id)
	}
	d.pendingMu.Unlock()
	d.hasFocused = false
	d.lastFocusTick = 0
}

func feedPriceText(ev domain.DeltaEvent) string {
	if ev.NewPrice < ev.OldPrice {
		return "PRICE DROP"
	}
	return "PRICE UP"
}
