// Package gateway provides an HTTP client for the OpenClaw agent gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/kanban/internal/domain"
)

const (
	toolAgentsList    = "agents_list"
	toolSessionsList  = "sessions_list"
	toolSessionsSpawn = "sessions_spawn"
	toolSessionsSend  = "sessions_send"

	maxErrorBody = 400
)

// Config holds gateway connection settings.
type Config struct {
	URL   string
	Token string

	AgentsTimeout time.Duration
	HealthTimeout time.Duration
	SpawnTimeout  time.Duration
	SendTimeout   time.Duration

	// SendWaitSeconds is how long the gateway waits for the session to accept a message.
	SendWaitSeconds int
	CacheTTL        time.Duration
}

func (c *Config) withDefaults() {
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")
	c.Token = strings.TrimSpace(c.Token)
	if c.AgentsTimeout <= 0 {
		c.AgentsTimeout = 12 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 10 * time.Second
	}
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = 75 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.SendWaitSeconds <= 0 {
		c.SendWaitSeconds = 90
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
}

// Client invokes gateway tools over POST {url}/tools/invoke.
type Client struct {
	cfg        Config
	httpClient *http.Client
	agents     *agentCache
}

// NewClient creates a new gateway client. A client without a token is disabled.
func NewClient(cfg Config) *Client {
	cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		agents:     newAgentCache(cfg.CacheTTL, time.Now),
	}
}

// Enabled reports whether a token is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Token != ""
}

// CacheTTL returns the agent directory cache lifetime.
func (c *Client) CacheTTL() time.Duration {
	return c.cfg.CacheTTL
}

type invokeRequest struct {
	Tool string      `json:"tool"`
	Args interface{} `json:"args"`
}

type invokeResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type invokeResult struct {
	Details         json.RawMessage `json:"details"`
	Content         []contentItem   `json:"content"`
	ChildSessionKey string          `json:"childSessionKey"`
	RunID           string          `json:"runId"`
}

func (c *Client) invoke(ctx context.Context, tool string, args interface{}, timeout time.Duration) (*invokeResult, error) {
	if !c.Enabled() {
		return nil, domain.ErrGatewayDisabled
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	body, err := json.Marshal(invokeRequest{Tool: tool, Args: args})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", tool, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/tools/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := truncate(strings.TrimSpace(string(raw)), maxErrorBody)
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("gateway error: %s", detail)
	}

	var decoded invokeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("gateway returned invalid JSON: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("gateway invoke %s failed: %s", tool, truncate(string(raw), maxErrorBody))
	}

	var result invokeResult
	if len(decoded.Result) > 0 && decoded.Result[0] == '{' {
		// Non-object results carry nothing we read.
		_ = json.Unmarshal(decoded.Result, &result)
	}
	return &result, nil
}

// Health probes the gateway with agents_list, falling back to sessions_list
// for gateways that do not expose the agent directory.
func (c *Client) Health(ctx context.Context) domain.GatewayHealth {
	if !c.Enabled() {
		return domain.GatewayHealth{OK: false, Gateway: domain.GatewayDisabled, Detail: domain.ErrGatewayDisabled.Error()}
	}

	_, agentsErr := c.invoke(ctx, toolAgentsList, nil, c.cfg.HealthTimeout)
	if agentsErr == nil {
		return domain.GatewayHealth{OK: true, Gateway: domain.GatewayReachable}
	}

	_, sessionsErr := c.invoke(ctx, toolSessionsList, map[string]int{"limit": 1, "messageLimit": 0}, c.cfg.HealthTimeout)
	if sessionsErr == nil {
		return domain.GatewayHealth{OK: true, Gateway: domain.GatewayReachable}
	}

	return domain.GatewayHealth{
		OK:      false,
		Gateway: domain.GatewayUnreachable,
		Detail:  fmt.Sprintf("agents_list failed: %v; sessions_list failed: %v", agentsErr, sessionsErr),
	}
}

// ListAgents returns the cached agent directory, refreshing it when expired or forced.
func (c *Client) ListAgents(ctx context.Context, force bool) (*domain.AgentDirectory, error) {
	if !c.Enabled() {
		return nil, domain.ErrGatewayDisabled
	}
	return c.agents.get(ctx, force, c.fetchAgents)
}

func (c *Client) fetchAgents(ctx context.Context) ([]domain.Agent, error) {
	result, err := c.invoke(ctx, toolAgentsList, nil, c.cfg.AgentsTimeout)
	if err != nil {
		return nil, err
	}
	return parseAgents(result), nil
}

// ResolveAgent maps an assignee to a configured agent id, matching id or name
// case-insensitively. It returns "" when nothing matches.
func (c *Client) ResolveAgent(ctx context.Context, assignee string) (string, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" || strings.EqualFold(assignee, domain.Unassigned) {
		return "", nil
	}
	dir, err := c.ListAgents(ctx, false)
	if err != nil {
		return "", err
	}
	return MatchAgent(assignee, dir.Agents), nil
}

// MatchAgent finds the configured agent whose id or name equals assignee, ignoring case.
func MatchAgent(assignee string, agents []domain.Agent) string {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return ""
	}
	for _, a := range agents {
		if !a.Configured || a.ID == "" {
			continue
		}
		if strings.EqualFold(assignee, a.ID) {
			return a.ID
		}
		if a.Name != nil && *a.Name != "" && strings.EqualFold(assignee, strings.TrimSpace(*a.Name)) {
			return a.ID
		}
	}
	return ""
}

// AssigneeOptions lists Unassigned plus every configured agent id, sorted
// case-insensitively. It falls back to just Unassigned when the directory is unavailable.
func (c *Client) AssigneeOptions(ctx context.Context) []string {
	fallback := []string{domain.Unassigned}
	if !c.Enabled() {
		return fallback
	}
	dir, err := c.ListAgents(ctx, false)
	if err != nil {
		return fallback
	}
	options := assigneeOptions(dir.Agents)
	if len(options) <= 1 {
		return fallback
	}
	return options
}

// SpawnSession starts an agent session. A reply with ok=true whose details
// report status=error, or that lacks a childSessionKey, is a failure.
func (c *Client) SpawnSession(ctx context.Context, req domain.SpawnRequest) (*domain.SpawnResult, error) {
	args := map[string]string{
		"agentId": req.AgentID,
		"task":    req.Task,
		"label":   req.Label,
		"cleanup": "keep",
	}
	result, err := c.invoke(ctx, toolSessionsSpawn, args, c.cfg.SpawnTimeout)
	if err != nil {
		return nil, err
	}
	return parseSpawn(result)
}

// SendToSession forwards a message into an existing session.
func (c *Client) SendToSession(ctx context.Context, sessionKey, message string) error {
	args := map[string]interface{}{
		"sessionKey":     sessionKey,
		"message":        message,
		"timeoutSeconds": c.cfg.SendWaitSeconds,
	}
	_, err := c.invoke(ctx, toolSessionsSend, args, c.cfg.SendTimeout)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
