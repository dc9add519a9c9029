// Package backend talks to the simulation backend: a small JSON REST
// surface for the session handshake plus a WebSocket live channel for
// tick streaming.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storesim-observer/internal/domain"
)

// DefaultTimeout bounds individual REST requests. Handshake steps are
// never retried; a failure is terminal for that attempt.
const DefaultTimeout = 30 * time.Second

// Client implements the backend REST surface.
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates a new REST client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createSessionRequest struct {
	Scenario string  `json:"scenario"`
	Agent    string  `json:"agent"`
	Seed     int64   `json:"seed"`
	MaxTicks int     `json:"max_ticks"`
	Speed    float64 `json:"speed"`
}

type createSessionResponse struct {
	ID                string `json:"id"`
	SubscriptionTopic string `json:"subscription_topic"`
}

// CreateSession asks the backend for a new session.
func (c *Client) CreateSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionInfo, error) {
	req := createSessionRequest{
		Scenario: cfg.Scenario,
		Agent:    cfg.Agent,
		Seed:     cfg.Seed,
		MaxTicks: cfg.MaxTicks,
		Speed:    cfg.Speed,
	}

	var resp createSessionResponse
	if err := c.post(ctx, "create session", "/api/sessions", req, &resp); err != nil {
		return domain.SessionInfo{}, err
	}
	if resp.ID == "" {
		return domain.SessionInfo{}, fmt.Errorf("create session: empty session id in response")
	}
	return domain.SessionInfo{ID: resp.ID, SubscriptionTopic: resp.SubscriptionTopic}, nil
}

// StartSession begins the created session.
func (c *Client) StartSession(ctx context.Context, id string) error {
	return c.post(ctx, "start session", "/api/sessions/"+id+"/start", struct{}{}, nil)
}

// RunSession activates the free-running loop for a started session.
func (c *Client) RunSession(ctx context.Context, id string) error {
	return c.post(ctx, "run session", "/api/sessions/"+id+"/run", struct{}{}, nil)
}

// ListScenarios retrieves the available simulation scenarios.
func (c *Client) ListScenarios(ctx context.Context) ([]domain.ScenarioInfo, error) {
	var resp struct {
		Scenarios []domain.ScenarioInfo `json:"scenarios"`
	}
	if err := c.get(ctx, "list scenarios", "/api/scenarios", &resp); err != nil {
		return nil, err
	}
	if resp.Scenarios == nil {
		resp.Scenarios = []domain.ScenarioInfo{}
	}
	return resp.Scenarios, nil
}

// ListModels retrieves the available agent models.
func (c *Client) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	var resp struct {
		Models []domain.ModelInfo `json:"models"`
	}
	if err := c.get(ctx, "list models", "/api/models", &resp); err != nil {
		return nil, err
	}
	if resp.Models == nil {
		resp.Models = []domain.ModelInfo{}
	}
	return resp.Models, nil
}

func (c *Client) post(ctx context.Context, step, path string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", step, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", step, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(step, req, result)
}

func (c *Client) get(ctx context.Context, step, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", step, err)
	}
	return c.do(step, req, result)
}

func (c *Client) do(step string, req *http.Request, result interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Step: step, Code: resp.StatusCode}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: decode response: %w", step, err)
	}
	return nil
}
