package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaot623/kanban/internal/domain"
	"github.com/xiaot623/kanban/internal/logger"
	store "github.com/xiaot623/kanban/internal/repository"
	"github.com/xiaot623/kanban/policy"
)

// Dispatcher hands tickets to gateway agents after a committed move and
// forwards comments to the agent session a ticket holds. Gateway failures
// are recorded as outcome events and never returned as errors.
type Dispatcher struct {
	store      store.Store
	gateway    Gateway
	policy     PickupPolicy
	apiBaseURL string
	now        func() time.Time

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// PickupResult is what a move-triggered spawn produced.
type PickupResult struct {
	Outcome  domain.PickupOutcome
	Events   []*domain.TicketEvent
	Warnings []string
	// Ticket is set when the spawned session was attached to the ticket.
	Ticket *domain.Ticket
}

// NotifyResult is what a comment-triggered send produced.
type NotifyResult struct {
	Outcome  domain.NotifyOutcome
	Events   []*domain.TicketEvent
	Warnings []string
}

func NewDispatcher(st store.Store, gateway Gateway, policyEngine PickupPolicy, apiBaseURL string, now func() time.Time) *Dispatcher {
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080"
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		store:      st,
		gateway:    gateway,
		policy:     policyEngine,
		apiBaseURL: apiBaseURL,
		now:        now,
		inflight:   make(map[int64]struct{}),
	}
}

// acquire marks a spawn for ticketID as outstanding. It reports false when
// one already is.
func (d *Dispatcher) acquire(ticketID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[ticketID]; busy {
		return false
	}
	d.inflight[ticketID] = struct{}{}
	return true
}

func (d *Dispatcher) release(ticketID int64) {
	d.mu.Lock()
	delete(d.inflight, ticketID)
	d.mu.Unlock()
}

// OnMove runs agent pickup for a ticket that just moved from `from` to its
// current status. The ticket must be the state committed by the move.
func (d *Dispatcher) OnMove(ctx context.Context, t *domain.Ticket, from domain.Status) PickupResult {
	var res PickupResult
	to := t.Status

	if from == to || !to.AgentEligible() || t.Archived() {
		return res
	}
	if key := t.SessionKey(); key != "" {
		res.Outcome.SessionKey = key
		res.Outcome.Reason = "Ticket already has an active agent session"
		return res
	}
	if !d.acquire(t.ID) {
		msg := fmt.Sprintf("Agent pickup already in progress for ticket #%d", t.ID)
		res.Outcome.Reason = msg
		res.Warnings = append(res.Warnings, msg)
		return res
	}
	defer d.release(t.ID)

	// The move is committed; a disconnecting caller must not abort pickup.
	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		TicketID: logger.Ptr(t.ID),
		Trigger:  logger.Ptr(policy.TriggerSpawn),
	})

	// t is the state this move committed. Another move may have committed
	// and attached a session since then, so gate on the current row.
	cur, err := d.store.GetTicket(ctx, t.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to reload ticket for pickup", "error", err)
		msg := fmt.Sprintf("Agent pickup skipped: failed to reload ticket #%d: %v", t.ID, err)
		res.Outcome.Reason = msg
		res.Warnings = append(res.Warnings, msg)
		return res
	}
	if cur == nil || cur.Archived() || !cur.Status.AgentEligible() {
		slog.DebugContext(ctx, "ticket no longer eligible for pickup")
		return res
	}
	if key := cur.SessionKey(); key != "" {
		res.Outcome.SessionKey = key
		res.Outcome.Reason = "Ticket already has an active agent session"
		return res
	}
	t = cur

	if d.gateway == nil || !d.gateway.Enabled() {
		d.spawnFailed(ctx, &res, t, domain.ErrGatewayDisabled.Error(), false)
		return res
	}

	if d.policy != nil {
		decision, err := d.policy.Evaluate(ctx, policy.Input{Trigger: policy.TriggerSpawn, Ticket: ticketInput(t)})
		if err != nil {
			d.spawnFailed(ctx, &res, t, fmt.Sprintf("pickup policy failed: %v", err), false)
			return res
		}
		if !decision.Allowed() {
			d.spawnFailed(ctx, &res, t, decision.Reason, false)
			return res
		}
	}

	// A failed directory fetch already reached for the gateway.
	agentID, err := d.gateway.ResolveAgent(ctx, t.Assignee)
	if err != nil {
		d.spawnFailed(ctx, &res, t, fmt.Sprintf("Agent directory unavailable: %v", err), true)
		return res
	}
	if agentID == "" {
		d.spawnFailed(ctx, &res, t, fmt.Sprintf("No configured gateway agent found for assignee '%s'", t.Assignee), false)
		return res
	}
	res.Outcome.AgentID = agentID

	spawned, err := d.gateway.SpawnSession(ctx, domain.SpawnRequest{
		AgentID: agentID,
		Task:    BuildSpawnPrompt(t, d.apiBaseURL),
		Label:   fmt.Sprintf("ticket-%d", t.ID),
	})
	if err != nil {
		d.spawnFailed(ctx, &res, t, err.Error(), true)
		return res
	}

	res.Outcome.Attempted = true
	res.Outcome.Spawned = true
	res.Outcome.SessionKey = spawned.SessionKey
	res.Outcome.RunID = spawned.RunID
	res.Outcome.Status = spawned.Status

	d.attachSession(ctx, &res, t, agentID, spawned)
	return res
}

// attachSession records the spawned session on the ticket, but only if the
// ticket is still eligible, unarchived and without a session. The
// agent_spawned event is written either way.
func (d *Dispatcher) attachSession(ctx context.Context, res *PickupResult, t *domain.Ticket, agentID string, spawned *domain.SpawnResult) {
	attached := false
	updated, event, err := d.store.MutateTicket(ctx, t.ID, func(cur *domain.Ticket) (*domain.TicketEvent, error) {
		now := d.now()
		attached = cur.Status.AgentEligible() && !cur.Archived() && cur.SessionKey() == ""
		if attached {
			cur.AgentSessionKey = domain.StringPtr(spawned.SessionKey)
			cur.UpdatedAt = now
		}
		details := fmt.Sprintf("Assignee %s mapped to agent %s session=%s on status %s",
			cur.Assignee, agentID, spawned.SessionKey, cur.Status)
		if !attached {
			details += " (not attached)"
		}
		return domain.NewEvent(cur.ID, domain.EventTypeAgentSpawned, domain.SystemActor, details,
			domain.AgentSpawnedPayload{
				AgentID:    agentID,
				SessionKey: spawned.SessionKey,
				RunID:      spawned.RunID,
				Status:     cur.Status,
				Attached:   attached,
			}, now)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record spawned session",
			"session_key", spawned.SessionKey, "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("Agent session %s spawned but could not be recorded: %v", spawned.SessionKey, err))
		return
	}

	res.Events = append(res.Events, event)
	if attached {
		res.Ticket = updated
		slog.InfoContext(ctx, "agent session attached", "agent_id", agentID, "session_key", spawned.SessionKey)
		return
	}
	msg := fmt.Sprintf("Agent session %s spawned but ticket left the automation lanes before it could be attached", spawned.SessionKey)
	res.Warnings = append(res.Warnings, msg)
	slog.WarnContext(ctx, "spawned session not attached", "session_key", spawned.SessionKey, "status", updated.Status)
}

func (d *Dispatcher) spawnFailed(ctx context.Context, res *PickupResult, t *domain.Ticket, reason string, attempted bool) {
	res.Outcome.Attempted = attempted
	res.Outcome.Reason = reason
	res.Warnings = append(res.Warnings, reason)

	slog.WarnContext(ctx, "agent pickup failed", "reason", reason, "attempted", attempted)

	event, err := domain.NewEvent(t.ID, domain.EventTypeSpawnFailed, domain.SystemActor, reason,
		domain.SpawnFailedPayload{Status: t.Status, Reason: reason, Attempted: attempted}, d.now())
	if err == nil {
		err = d.store.CreateEvent(ctx, event)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to record spawn failure", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to record spawn failure: %v", err))
		return
	}
	res.Events = append(res.Events, event)
}

// OnComment forwards a new comment to the agent session held by the ticket.
// The ticket must be the state read when the comment was committed.
func (d *Dispatcher) OnComment(ctx context.Context, t *domain.Ticket, c *domain.TicketComment) NotifyResult {
	var res NotifyResult

	key := t.SessionKey()
	if t.Archived() || !t.Status.AgentEligible() || key == "" {
		return res
	}
	res.Outcome.SessionKey = key

	ctx = logger.WithLogFields(context.WithoutCancel(ctx), logger.LogFields{
		TicketID: logger.Ptr(t.ID),
		Trigger:  logger.Ptr(policy.TriggerSend),
	})

	if d.policy != nil {
		decision, err := d.policy.Evaluate(ctx, policy.Input{
			Trigger: policy.TriggerSend,
			Ticket:  ticketInput(t),
			Comment: &policy.CommentInput{Author: c.Author, Content: c.Content},
		})
		if err != nil {
			d.sendFailed(ctx, &res, t, c, fmt.Sprintf("pickup policy failed: %v", err), false)
			return res
		}
		if !decision.Allowed() {
			res.Outcome.Reason = decision.Reason
			return res
		}
	}

	if d.gateway == nil || !d.gateway.Enabled() {
		d.sendFailed(ctx, &res, t, c, domain.ErrGatewayDisabled.Error(), false)
		return res
	}

	if err := d.gateway.SendToSession(ctx, key, BuildFollowupPrompt(t, c)); err != nil {
		reason := err.Error()
		if errors.Is(err, domain.ErrGatewayDisabled) {
			d.sendFailed(ctx, &res, t, c, reason, false)
			return res
		}
		d.sendFailed(ctx, &res, t, c, reason, true)
		return res
	}

	res.Outcome.Attempted = true
	res.Outcome.Notified = true

	event, err := domain.NewEvent(t.ID, domain.EventTypeAgentNotified, domain.SystemActor,
		fmt.Sprintf("Forwarded comment #%d to session=%s", c.ID, key),
		domain.AgentNotifiedPayload{SessionKey: key, CommentID: c.ID}, d.now())
	if err == nil {
		err = d.store.CreateEvent(ctx, event)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to record agent notification", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to record agent notification: %v", err))
		return res
	}
	res.Events = append(res.Events, event)
	return res
}

func (d *Dispatcher) sendFailed(ctx context.Context, res *NotifyResult, t *domain.Ticket, c *domain.TicketComment, reason string, attempted bool) {
	res.Outcome.Attempted = attempted
	res.Outcome.Reason = reason
	res.Warnings = append(res.Warnings, reason)

	slog.WarnContext(ctx, "comment forward failed", "reason", reason, "attempted", attempted)

	event, err := domain.NewEvent(t.ID, domain.EventTypeSendFailed, domain.SystemActor, reason,
		domain.SendFailedPayload{SessionKey: t.SessionKey(), CommentID: c.ID, Reason: reason}, d.now())
	if err == nil {
		err = d.store.CreateEvent(ctx, event)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to record send failure", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("Failed to record send failure: %v", err))
		return
	}
	res.Events = append(res.Events, event)
}

func ticketInput(t *domain.Ticket) policy.TicketInput {
	return policy.TicketInput{
		ID:       t.ID,
		Title:    t.Title,
		Status:   string(t.Status),
		Assignee: t.Assignee,
		Priority: string(t.Priority),
	}
}
