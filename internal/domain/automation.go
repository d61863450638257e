package domain

import "time"

// Agent is an entry of the gateway agent directory.
type Agent struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	Configured bool    `json:"configured"`
}

// AgentDirectory is a snapshot of the gateway agent list.
type AgentDirectory struct {
	Agents    []Agent   `json:"agents"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Cached    bool      `json:"cached"`
	Stale     bool      `json:"stale"`
}

// GatewayHealth is the result of a gateway health probe.
type GatewayHealth struct {
	OK      bool          `json:"ok"`
	Gateway GatewayStatus `json:"gateway"`
	Detail  string        `json:"detail,omitempty"`
}

// SpawnRequest asks the gateway to start an agent session for a ticket.
type SpawnRequest struct {
	AgentID string
	Task    string
	Label   string
}

// SpawnResult is a confirmed agent session.
type SpawnResult struct {
	SessionKey string
	RunID      string
	Status     string
}

// PickupOutcome reports the automation attempt made after a move.
type PickupOutcome struct {
	Attempted  bool   `json:"attempted"`
	Spawned    bool   `json:"spawned"`
	AgentID    string `json:"agent_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// NotifyOutcome reports the automation attempt made after a comment.
type NotifyOutcome struct {
	Attempted  bool   `json:"attempted"`
	Notified   bool   `json:"notified"`
	SessionKey string `json:"session_key,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MoveResult is returned by a move. It is a success even when automation failed.
type MoveResult struct {
	OK       bool          `json:"ok"`
	Ticket   *Ticket       `json:"ticket"`
	From     Status        `json:"from"`
	To       Status        `json:"to"`
	Pickup   PickupOutcome `json:"pickup"`
	Warnings []string      `json:"warnings"`
}

// CommentResult is returned by adding a comment.
type CommentResult struct {
	TicketComment
	Notify   NotifyOutcome `json:"notify"`
	Warnings []string      `json:"warnings"`
}

// AgentsResponse is the body of GET /api/agents.
type AgentsResponse struct {
	OK              bool       `json:"ok"`
	Agents          []Agent    `json:"agents"`
	CacheTTLSeconds int        `json:"cacheTtlSeconds"`
	Cached          bool       `json:"cached"`
	Stale           bool       `json:"stale"`
	FetchedAt       *time.Time `json:"fetchedAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	Detail          string     `json:"detail,omitempty"`
}

// BoardConfig is the body of GET /api/config.
type BoardConfig struct {
	Statuses    []Status            `json:"statuses"`
	Priorities  []Priority          `json:"priorities"`
	Assignees   []string            `json:"assignees"`
	Transitions map[Status][]Status `json:"transitions"`
}
