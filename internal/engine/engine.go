// Package engine fans each inbound tick snapshot out to the observer
// pipeline: classification → highlight aggregation → narration feed →
// stage direction → archival.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"storesim-observer/internal/director"
	"storesim-observer/internal/domain"
	"storesim-observer/internal/feed"
	"storesim-observer/internal/highlights"
	"storesim-observer/internal/idhash"
	"storesim-observer/internal/observability"
	"storesim-observer/internal/observer"
	"storesim-observer/internal/storage"
)

// TickRecorder receives every processed snapshot for archival.
// Recording is best-effort: failures are logged, never propagated into
// the live pipeline.
type TickRecorder interface {
	RecordTick(ctx context.Context, runID string, snap domain.TickSnapshot) error
	Flush(ctx context.Context) error
}

// Engine coordinates the per-tick fan-out for one run at a time.
// All methods must be called from the single tick-processing goroutine.
type Engine struct {
	classifier *observer.Classifier
	aggregator *highlights.Aggregator
	feed       *feed.Feed
	director   *director.Director

	recorder     TickRecorder
	summaryStore storage.RunSummaryStore

	scenario string
	agent    string
	seed     int64

	runID       string
	createdAtMs int64

	verbose bool
}

// Options for creating Engine.
type Options struct {
	// Required pipeline components
	Classifier *observer.Classifier
	Aggregator *highlights.Aggregator
	Feed       *feed.Feed

	// Optional: stage direction (nil disables visuals)
	Director *director.Director

	// Optional: run archival for replay (nil disables recording)
	Recorder TickRecorder

	// Optional: summary persistence (nil disables)
	SummaryStore storage.RunSummaryStore

	// Run identity inputs
	Scenario string
	Agent    string
	Seed     int64

	Verbose bool
}

// New creates a new Engine.
func New(opts Options) *Engine {
	return &Engine{
		classifier:   opts.Classifier,
		aggregator:   opts.Aggregator,
		feed:         opts.Feed,
		director:     opts.Director,
		recorder:     opts.Recorder,
		summaryStore: opts.SummaryStore,
		scenario:     opts.Scenario,
		agent:        opts.Agent,
		seed:         opts.Seed,
		verbose:      opts.Verbose,
	}
}

// BeginRun clears all per-run state and fixes the run identity.
// createdAtMs is the session creation time reported by the backend.
func (e *Engine) BeginRun(createdAtMs int64) {
	e.reset()
	e.createdAtMs = createdAtMs
	e.runID = idhash.ComputeRunID(e.scenario, e.agent, e.seed, createdAtMs)
	if e.verbose {
		log.Printf("[engine] run %s started (scenario=%s agent=%s seed=%d)",
			idhash.ShortRunID(e.runID), e.scenario, e.agent, e.seed)
	}
}

// RunID returns the identity of the current run, or "" before BeginRun.
func (e *Engine) RunID() string {
	return e.runID
}

// Highlights returns the best-moment summary accumulated so far.
func (e *Engine) Highlights() domain.RunHighlights {
	return e.aggregator.Summary()
}

// HandleTick classifies one snapshot and fans the result out to the
// aggregator, feed, director and recorder.
func (e *Engine) HandleTick(ctx context.Context, snap domain.TickSnapshot) observer.Result {
	start := time.Now()

	res := e.classifier.Classify(snap)
	if res.Restarted {
		e.aggregator.Reset()
		e.feed.Reset()
		if e.director != nil {
			e.director.Stop()
		}
		observability.RecordTickRegression()
		if e.verbose {
			log.Printf("[engine] tick regression at tick %d, state reset", snap.Tick)
		}
	}

	e.aggregator.Update(snap.Tick, res.RevenueDelta, res.UnitsDelta)
	for _, ev := range res.Events {
		e.feed.Append(ev)
		observability.RecordDeltaEvent(string(ev.Type))
	}

	if e.director != nil {
		e.director.OnTick(snap.Tick, res.Events)
		observability.UpdateEffectsInFlight(e.director.InFlight())
	}

	if e.recorder != nil && e.runID != "" {
		if err := e.recorder.RecordTick(ctx, e.runID, snap); err != nil {
			log.Printf("[engine] tick %d not archived: %v", snap.Tick, err)
		}
	}

	observability.RecordTickProcessed(int64(snap.Tick))
	observability.RecordTickLatency(time.Since(start).Seconds())
	return res
}

// HandleFinished builds the terminal run summary from the backend's
// totals plus the accumulated highlights, flushes the recorder and
// persists the summary.
func (e *Engine) HandleFinished(ctx context.Context, fin domain.FinishedSummary) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		RunID:      e.runID,
		Scenario:   e.scenario,
		Agent:      e.agent,
		Seed:       e.seed,
		Summary:    fin,
		Highlights: e.aggregator.Summary(),
		FinishedAt: time.Now().UnixMilli(),
	}

	if e.recorder != nil {
		if err := e.recorder.Flush(ctx); err != nil {
			log.Printf("[engine] archive flush failed: %v", err)
		}
	}

	if e.summaryStore != nil && e.runID != "" {
		if err := e.summaryStore.Insert(ctx, summary); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				log.Printf("[engine] summary for run %s already persisted", idhash.ShortRunID(e.runID))
			} else {
				observability.RecordDBQueryError("run_summaries", "insert")
				return summary, fmt.Errorf("persisting run summary: %w", err)
			}
		} else {
			observability.RecordSummaryPersisted()
		}
	}

	observability.RecordRunFinished()
	if e.verbose {
		log.Printf("[engine] run %s finished: %d ticks, revenue $%.2f",
			idhash.ShortRunID(e.runID), fin.TotalTicks, fin.TotalRevenue)
	}
	return summary, nil
}

// HandleDisconnect freezes the pipeline after an unexpected stream
// loss. Accumulated state stays intact so the last view remains
// meaningful, but in-flight effects are cancelled.
func (e *Engine) HandleDisconnect() {
	if e.director != nil {
		e.director.Stop()
	}
	observability.RecordDisconnect()
	tick, _ := e.classifier.State().LastTick()
	log.Printf("[engine] stream disconnected at tick %d", tick)
}

// Reset discards all per-run state, returning the engine to the state
// it had before BeginRun.
func (e *Engine) Reset() {
	e.reset()
	e.runID = ""
	e.createdAtMs = 0
}

func (e *Engine) reset() {
	e.classifier.State().Reset()
	e.aggregator.Reset()
	e.feed.Reset()
	if e.director != nil {
		e.director.Stop()
	}
}
