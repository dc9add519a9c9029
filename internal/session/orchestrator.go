// Package session drives the multi-step run handshake against the
// backend and owns the lifecycle state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"storesim-observer/internal/backend"
	"storesim-observer/internal/domain"
	"storesim-observer/internal/observability"
)

// ErrNotIdle is returned by Start while a handshake or run is already
// in progress. Callers must Stop first.
var ErrNotIdle = errors.New("session not idle")

// API is the REST surface the handshake needs.
// Implemented by backend.Client.
type API interface {
	CreateSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionInfo, error)
	StartSession(ctx context.Context, id string) error
	RunSession(ctx context.Context, id string) error
}

// LiveStream is the push side of a running session.
// Implemented by backend.LiveClient.
type LiveStream interface {
	Messages() <-chan backend.Envelope
	RequestStep() error
	Close() error
}

// DialFunc opens the live channel for a confirmed session.
type DialFunc func(ctx context.Context, topic string) (LiveStream, error)

// Orchestrator walks a session through
// create → start → run → subscribe and tracks its state. Any step
// failure resets to Idle with no retry; a fresh Start is the only
// recovery. There is deliberately no client-side timeout on the
// handshake steps beyond what the caller's ctx imposes.
type Orchestrator struct {
	api  API
	dial DialFunc

	mu          sync.Mutex
	state       domain.SessionState
	info        domain.SessionInfo
	live        LiveStream
	createdAtMs int64

	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	API     API
	Dial    DialFunc
	Verbose bool
}

// New creates a new Orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		api:     opts.API,
		dial:    opts.Dial,
		state:   domain.SessionIdle,
		verbose: opts.Verbose,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() domain.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Info returns the session identity from the create step. Zero value
// while Idle.
func (o *Orchestrator) Info() domain.SessionInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.info
}

// CreatedAtMs returns the client-observed creation time of the current
// session, used for deterministic run identity.
func (o *Orchestrator) CreatedAtMs() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.createdAtMs
}

// Stream returns the live envelope channel, or nil while not Running.
func (o *Orchestrator) Stream() <-chan backend.Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.live == nil {
		return nil
	}
	return o.live.Messages()
}

// RequestStep forwards a single-step request to the live channel.
func (o *Orchestrator) RequestStep() error {
	o.mu.Lock()
	live := o.live
	o.mu.Unlock()
	if live == nil {
		return fmt.Errorf("no live channel")
	}
	return live.RequestStep()
}

// Start runs the full handshake. On success the session is Running and
// Stream delivers envelopes. On any step failure the state returns to
// Idle and the step's error is returned.
func (o *Orchestrator) Start(ctx context.Context, cfg domain.SessionConfig) error {
	o.mu.Lock()
	switch o.state {
	case domain.SessionIdle, domain.SessionFinished, domain.SessionStopped:
	default:
		o.mu.Unlock()
		return ErrNotIdle
	}
	o.state = domain.SessionIdle
	stale := o.live
	o.live = nil
	o.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	info, err := o.api.CreateSession(ctx, cfg)
	if err != nil {
		o.fail("create", err)
		return fmt.Errorf("create session: %w", err)
	}
	o.transition(domain.SessionCreated)
	o.mu.Lock()
	o.info = info
	o.createdAtMs = time.Now().UnixMilli()
	o.mu.Unlock()

	if err := o.api.StartSession(ctx, info.ID); err != nil {
		o.fail("start", err)
		return fmt.Errorf("start session: %w", err)
	}
	o.transition(domain.SessionStarted)

	if err := o.api.RunSession(ctx, info.ID); err != nil {
		o.fail("run", err)
		return fmt.Errorf("run session: %w", err)
	}

	live, err := o.dial(ctx, info.SubscriptionTopic)
	if err != nil {
		o.fail("subscribe", err)
		return fmt.Errorf("subscribe: %w", err)
	}

	o.mu.Lock()
	o.live = live
	o.state = domain.SessionRunning
	o.mu.Unlock()

	observability.RecordSessionStarted()
	o.log("session %s running (topic %s)", info.ID, info.SubscriptionTopic)
	return nil
}

// MarkFinished records the terminal finished message. The live channel
// stays open until Stop so trailing frames can drain.
func (o *Orchestrator) MarkFinished() {
	o.transition(domain.SessionFinished)
}

// Stop tears the session down unconditionally, whatever step it is in.
// Safe to call while Idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	live := o.live
	o.live = nil
	o.info = domain.SessionInfo{}
	o.createdAtMs = 0
	o.state = domain.SessionStopped
	o.mu.Unlock()

	if live != nil {
		live.Close()
	}
	o.log("session stopped")
}

func (o *Orchestrator) transition(s domain.SessionState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// fail resets to Idle after a handshake step error.
func (o *Orchestrator) fail(step string, err error) {
	o.mu.Lock()
	o.state = domain.SessionIdle
	o.info = domain.SessionInfo{}
	o.createdAtMs = 0
	o.mu.Unlock()

	observability.RecordHandshakeFailure(step)
	log.Printf("[session] %s step failed: %v", step, err)
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[session] "+format, args...)
	}
}
