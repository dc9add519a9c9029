package director

import "time"

// Zone names a region of the storefront scene. Rendering technology is out
// of scope here; zones are logical anchors for effects and camera focus.
type Zone string

// Storefront zones.
const (
	ZoneInboundDock Zone = "inbound_dock"
	ZoneShelf       Zone = "shelf"
	ZoneCheckout    Zone = "checkout"
	ZoneOutbound    Zone = "outbound"
)

// EffectID identifies one scheduled visual effect.
type EffectID int64

// Stage is the rendering surface the director drives. Implementations own
// drawing; the director decides what happens and when. All methods must be
// cheap and non-blocking.
//
// EnsureProduct is called before any effect that references a product, so
// an event for an asin that has never been drawn is never dropped.
type Stage interface {
	EnsureProduct(asin string)

	BeginPackageFlow(id EffectID, from, to Zone, asin string)
	EndPackageFlow(id EffectID)

	BeginZoneFlash(id EffectID, zone Zone)
	EndZoneFlash(id EffectID)

	ShowCallout(id EffectID, asin, text string)
	HideCallout(id EffectID)
}

// FocusRequest asks the camera to move to a product with a target zoom.
// The transition animates over Duration.
type FocusRequest struct {
	ASIN     string
	Zoom     float64
	Duration time.Duration
}

// Camera receives focus requests in presentation mode. Implementations must
// cancel any in-flight focus transition before starting a new one; requests
// are never queued.
type Camera interface {
	Focus(req FocusRequest)
}
