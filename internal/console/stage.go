// Package console renders the storefront scene as terminal output.
// It is the reference Stage/Camera implementation: every effect becomes
// one log line, which is enough for unattended recording and debugging
// and keeps the director fully exercised without a graphics layer.
package console

import (
	"log"
	"os"
	"sync"

	"storesim-observer/internal/director"
)

// Stage logs scene effects to the console.
type Stage struct {
	logger *log.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewStage creates a console stage writing to stdout.
func NewStage() *Stage {
	return &Stage{
		logger: log.New(os.Stdout, "[stage] ", log.LstdFlags),
		known:  make(map[string]bool),
	}
}

// EnsureProduct registers an asin the first time it appears on stage.
func (s *Stage) EnsureProduct(asin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[asin] {
		return
	}
	s.known[asin] = true
	s.logger.Printf("+ product %s enters the scene", asin)
}

// BeginPackageFlow draws a package moving between zones.
func (s *Stage) BeginPackageFlow(id director.EffectID, from, to director.Zone, asin string) {
	s.logger.Printf("~ [%d] %s: package %s -> %s", id, asin, from, to)
}

// EndPackageFlow removes a finished package animation.
func (s *Stage) EndPackageFlow(id director.EffectID) {
	s.logger.Printf("  [%d] package delivered", id)
}

// BeginZoneFlash highlights a zone.
func (s *Stage) BeginZoneFlash(id director.EffectID, zone director.Zone) {
	s.logger.Printf("~ [%d] flash %s", id, zone)
}

// EndZoneFlash clears a zone highlight.
func (s *Stage) EndZoneFlash(id director.EffectID) {
	s.logger.Printf("  [%d] flash done", id)
}

// ShowCallout pins a text bubble on a product.
func (s *Stage) ShowCallout(id director.EffectID, asin, text string) {
	s.logger.Printf("~ [%d] %s: %s", id, asin, text)
}

// HideCallout removes a text bubble.
func (s *Stage) HideCallout(id director.EffectID) {
	s.logger.Printf("  [%d] callout hidden", id)
}

// Camera logs focus transitions. A new request supersedes the previous
// one immediately, matching the no-queue contract.
type Camera struct {
	logger *log.Logger
}

// NewCamera creates a console camera writing to stdout.
func NewCamera() *Camera {
	return &Camera{
		logger: log.New(os.Stdout, "[camera] ", log.LstdFlags),
	}
}

// Focus logs the camera moving to a product.
func (c *Camera) Focus(req director.FocusRequest) {
	c.logger.Printf("-> %s (zoom %.1fx over %s)", req.ASIN, req.Zoom, req.Duration)
}

var (
	_ director.Stage  = (*Stage)(nil)
	_ director.Camera = (*Camera)(nil)
)
