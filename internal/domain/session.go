package domain

// SessionState is the lifecycle state of an observer session.
type SessionState string

// Session state constants.
// Transitions: Idle → Created → Started → Running → {Finished | Stopped}.
// Any handshake failure or Stop() returns the session to Idle.
const (
	SessionIdle     SessionState = "idle"
	SessionCreated  SessionState = "created"
	SessionStarted  SessionState = "started"
	SessionRunning  SessionState = "running"
	SessionFinished SessionState = "finished"
	SessionStopped  SessionState = "stopped"
)

// SessionConfig holds the parameters sent with a create-session request.
type SessionConfig struct {
	Scenario string
	Agent    string
	Seed     int64
	MaxTicks int
	Speed    float64
}

// SessionInfo is the server's answer to a create-session request.
type SessionInfo struct {
	ID                string
	SubscriptionTopic string
}

// ScenarioInfo describes one available simulation scenario.
type ScenarioInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ModelInfo describes one available agent model.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
}
