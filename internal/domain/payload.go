package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TicketCreatedPayload is the payload of ticket_created.
type TicketCreatedPayload struct {
	Title    string   `json:"title"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Assignee string   `json:"assignee"`
}

// FieldChange is one edited field of a ticket_updated event.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// TicketUpdatedPayload is the payload of ticket_updated.
type TicketUpdatedPayload struct {
	Changes []FieldChange `json:"changes"`
}

// TicketMovedPayload is the payload of ticket_moved.
type TicketMovedPayload struct {
	From           Status `json:"from"`
	To             Status `json:"to"`
	SessionCleared bool   `json:"session_cleared,omitempty"`
}

// TicketArchivedPayload is the payload of ticket_archived.
type TicketArchivedPayload struct {
	FromStatus Status `json:"from_status"`
}

// CommentAddedPayload is the payload of comment_added.
type CommentAddedPayload struct {
	CommentID int64  `json:"comment_id"`
	Author    string `json:"author"`
	Excerpt   string `json:"excerpt"`
}

// AgentSpawnedPayload is the payload of agent_spawned. Attached is false when
// the ticket left the automation lanes before the session could be recorded.
type AgentSpawnedPayload struct {
	AgentID    string `json:"agent_id"`
	SessionKey string `json:"session_key"`
	RunID      string `json:"run_id,omitempty"`
	Status     Status `json:"status"`
	Attached   bool   `json:"attached"`
}

// SpawnFailedPayload is the payload of spawn_failed.
type SpawnFailedPayload struct {
	Status    Status `json:"status"`
	Reason    string `json:"reason"`
	Attempted bool   `json:"attempted"`
}

// AgentNotifiedPayload is the payload of agent_notified.
type AgentNotifiedPayload struct {
	SessionKey string `json:"session_key"`
	CommentID  int64  `json:"comment_id"`
}

// SendFailedPayload is the payload of send_failed.
type SendFailedPayload struct {
	SessionKey string `json:"session_key"`
	CommentID  int64  `json:"comment_id"`
	Reason     string `json:"reason"`
}

// commentExcerptRunes bounds the excerpt stored in comment_added events.
const commentExcerptRunes = 300

// NewEvent builds an unsaved event with a marshalled payload.
func NewEvent(ticketID int64, eventType EventType, actor string, details string, payload interface{}, at time.Time) (*TicketEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = b
	}
	return &TicketEvent{
		TicketID:  ticketID,
		EventType: eventType,
		Actor:     StringPtr(actor),
		Details:   details,
		Payload:   raw,
		CreatedAt: at,
	}, nil
}

// DecodePayload unmarshals the event payload into v.
func (e *TicketEvent) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %d has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// Excerpt truncates s to the comment excerpt size.
func Excerpt(s string) string {
	r := []rune(s)
	if len(r) <= commentExcerptRunes {
		return s
	}
	return string(r[:commentExcerptRunes])
}

// SummarizeChanges renders changes as "field: old -> new; ...".
func SummarizeChanges(changes []FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", c.Field, c.From, c.To))
	}
	return strings.Join(parts, "; ")
}
