package domain

import (
	"encoding/json"
	"time"
)

// Ticket is a trackable unit of work.
type Ticket struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Assignee        string     `json:"assignee"`
	Priority        Priority   `json:"priority"`
	AgentSessionKey *string    `json:"agent_session_key"`
	ArchivedAt      *time.Time `json:"archived_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Archived reports whether the ticket has been archived.
func (t *Ticket) Archived() bool {
	return t.ArchivedAt != nil
}

// SessionKey returns the active agent session key or "".
func (t *Ticket) SessionKey() string {
	if t.AgentSessionKey == nil {
		return ""
	}
	return *t.AgentSessionKey
}

// TicketEvent is an immutable audit record.
type TicketEvent struct {
	ID        int64           `json:"id"`
	TicketID  int64           `json:"ticket_id"`
	EventType EventType       `json:"event_type"`
	Actor     *string         `json:"actor"`
	Details   string          `json:"details"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// TicketComment is a discussion entry on a ticket.
type TicketComment struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityEntry is an event joined with a summary of its ticket.
type ActivityEntry struct {
	TicketEvent
	TicketTitle      string     `json:"ticket_title"`
	TicketStatus     Status     `json:"ticket_status"`
	TicketAssignee   string     `json:"ticket_assignee"`
	TicketPriority   Priority   `json:"ticket_priority"`
	TicketArchivedAt *time.Time `json:"ticket_archived_at"`
}

// BroadcastMessage is pushed to every connected viewer after a commit.
type BroadcastMessage struct {
	Type     MessageType    `json:"type"`
	TicketID int64          `json:"ticket_id"`
	Ticket   *Ticket        `json:"ticket,omitempty"`
	Event    *TicketEvent   `json:"event,omitempty"`
	Comment  *TicketComment `json:"comment,omitempty"`
	From     Status         `json:"from,omitempty"`
	To       Status         `json:"to,omitempty"`
	Ts       int64          `json:"ts"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
