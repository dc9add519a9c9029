package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// LiveClientConfig configures live channel behavior.
type LiveClientConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the envelope channel capacity.
	Buffer int
}

// DefaultLiveConfig returns default live channel configuration.
func DefaultLiveConfig() LiveClientConfig {
	return LiveClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		Buffer:           256,
	}
}

// LiveClient is the push side of the backend: one WebSocket connection
// subscribed to a single session topic. Messages are dispatched in
// arrival order on one channel consumed by the tick-processing
// goroutine. There is no automatic reconnect; a mid-run transport
// failure delivers a final Disconnected envelope and ends the stream.
type LiveClient struct {
	topic  string
	config LiveClientConfig

	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool

	messages chan Envelope
	done     chan struct{}
	wg       sync.WaitGroup
}

type subscribeRequest struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type stepRequest struct {
	Action string `json:"action"`
}

// DialLive connects to the live endpoint and subscribes to topic.
// The subscription is confirmed by the server's "subscribed" message;
// the call blocks until that confirmation or ctx cancellation.
func DialLive(ctx context.Context, endpoint, topic string, config *LiveClientConfig) (*LiveClient, error) {
	cfg := DefaultLiveConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &LiveClient{
		topic:    topic,
		config:   cfg,
		conn:     conn,
		messages: make(chan Envelope, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := c.subscribe(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// subscribe sends the topic subscription and waits for the server's
// confirmation. No client-side timeout beyond ctx: a hung handshake
// stays pending until the caller cancels.
func (c *LiveClient) subscribe(ctx context.Context) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(subscribeRequest{Action: "subscribe", Topic: c.topic}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	type readResult struct {
		data []byte
		err  error
	}
	readCh := make(chan readResult, 1)
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				readCh <- readResult{err: err}
				return
			}
			var head wireEnvelope
			if decodeErr := json.Unmarshal(data, &head); decodeErr == nil && head.Type == "subscribed" {
				readCh <- readResult{data: data}
				return
			}
			// Anything before the confirmation is discarded; the
			// backend does not stream ticks to unconfirmed topics.
		}
	}()

	select {
	case res := <-readCh:
		if res.err != nil {
			return fmt.Errorf("awaiting subscription confirm: %w", res.err)
		}
		return nil
	case <-ctx.Done():
		c.conn.Close()
		return ctx.Err()
	}
}

// Messages returns the in-order envelope stream. The channel is closed
// after a Disconnected envelope or a clean Close.
func (c *LiveClient) Messages() <-chan Envelope {
	return c.messages
}

// RequestStep asks the backend to advance a single tick. The request
// is fire-and-forget: the backend may ignore it while free-running.
func (c *LiveClient) RequestStep() error {
	if c.closed.Load() {
		return fmt.Errorf("live client closed")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(stepRequest{Action: "step"}); err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// Close closes the live channel. Safe to call more than once.
func (c *LiveClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
	c.writeMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches envelopes in arrival order.
func (c *LiveClient) readLoop() {
	defer c.wg.Done()
	defer close(c.messages)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			// Transport failure mid-run. Deliver the disconnect on the
			// same channel so the consumer sees it strictly after every
			// message that preceded it.
			select {
			case c.messages <- Envelope{Kind: KindDisconnected, Err: err}:
			case <-c.done:
			}
			return
		}

		env, ok, err := decodeEnvelope(data)
		if err != nil {
			// Undecodable frame: skip it rather than kill the stream.
			continue
		}
		if !ok {
			continue
		}

		// Block until the consumer drains; never drop or reorder.
		select {
		case c.messages <- env:
		case <-c.done:
			return
		}
	}
}
