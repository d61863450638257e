// Package domain defines the core domain models for the kanban service.
package domain

// Status is the workflow lane a ticket occupies.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusPlan       Status = "Plan"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// DefaultStatus is the lane every new ticket starts in.
const DefaultStatus = StatusTodo

// Statuses lists the lanes in board order.
var Statuses = []Status{StatusTodo, StatusPlan, StatusInProgress, StatusReview, StatusDone}

// Valid reports whether s is one of the fixed lanes.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// AgentEligible reports whether tickets in this lane may hold an agent session.
func (s Status) AgentEligible() bool {
	return s == StatusPlan || s == StatusInProgress
}

// Priority represents the urgency of a ticket.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// DefaultPriority is used when a ticket is created without a priority.
const DefaultPriority = PriorityMedium

// Priorities lists priorities from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Unassigned is the assignee placeholder for tickets nobody owns.
const Unassigned = "Unassigned"

// SystemActor is the actor recorded for automation outcomes.
const SystemActor = "System"

// EventType tags a TicketEvent. Each tag has a fixed payload schema, see payload.go.
type EventType string

const (
	EventTypeTicketCreated  EventType = "ticket_created"
	EventTypeTicketUpdated  EventType = "ticket_updated"
	EventTypeTicketMoved    EventType = "ticket_moved"
	EventTypeTicketArchived EventType = "ticket_archived"
	EventTypeCommentAdded   EventType = "comment_added"

	// Automation outcomes
	EventTypeAgentSpawned  EventType = "agent_spawned"
	EventTypeSpawnFailed   EventType = "spawn_failed"
	EventTypeAgentNotified EventType = "agent_notified"
	EventTypeSendFailed    EventType = "send_failed"
)

// MessageType tags a realtime broadcast message.
type MessageType string

const (
	MessageTicketCreated  MessageType = "ticket_created"
	MessageTicketUpdated  MessageType = "ticket_updated"
	MessageTicketMoved    MessageType = "ticket_moved"
	MessageTicketArchived MessageType = "ticket_archived"
	MessageCommentAdded   MessageType = "comment_added"
	MessageTicketEvent    MessageType = "ticket_event"
)

// GatewayStatus is the reachability reported by the gateway health check.
type GatewayStatus string

const (
	GatewayReachable   GatewayStatus = "reachable"
	GatewayUnreachable GatewayStatus = "unreachable"
	GatewayDisabled    GatewayStatus = "disabled"
)
