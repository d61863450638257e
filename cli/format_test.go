package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/kanban/internal/domain"
)

func TestFilterMatch(t *testing.T) {
	moved := domain.BroadcastMessage{Type: domain.MessageTicketMoved, TicketID: 7}

	assert.True(t, Filter{}.Match(moved))
	assert.True(t, Filter{TicketID: 7}.Match(moved))
	assert.False(t, Filter{TicketID: 8}.Match(moved))
	assert.True(t, Filter{Types: []domain.MessageType{domain.MessageTicketEvent, domain.MessageTicketMoved}}.Match(moved))
	assert.False(t, Filter{TicketID: 7, Types: []domain.MessageType{domain.MessageCommentAdded}}.Match(moved))
}

func TestFormatMessage(t *testing.T) {
	actor := "System"
	tests := []struct {
		name string
		msg  domain.BroadcastMessage
		want string
	}{
		{
			name: "moved",
			msg:  domain.BroadcastMessage{Type: domain.MessageTicketMoved, TicketID: 3, From: domain.StatusTodo, To: domain.StatusPlan},
			want: "[ticket_moved] #3 Todo -> Plan",
		},
		{
			name: "comment truncated",
			msg: domain.BroadcastMessage{Type: domain.MessageCommentAdded, TicketID: 3, Comment: &domain.TicketComment{
				Author:  "ana",
				Content: "line one\nline two  " + strings.Repeat("a", 55),
			}},
			want: "[comment_added] #3 ana: line one line two " + strings.Repeat("a", 42) + "...",
		},
		{
			name: "event",
			msg: domain.BroadcastMessage{Type: domain.MessageTicketEvent, TicketID: 3, Event: &domain.TicketEvent{
				EventType: domain.EventTypeAgentSpawned, Actor: &actor,
			}},
			want: "[ticket_event] #3 agent_spawned by System",
		},
		{
			name: "ticket",
			msg: domain.BroadcastMessage{Type: domain.MessageTicketCreated, TicketID: 3, Ticket: &domain.Ticket{
				Title: "Fix login", Status: domain.StatusTodo, Assignee: "Unassigned",
			}},
			want: `[ticket_created] #3 "Fix login" (Todo, Unassigned)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(tt.msg))
		})
	}
}
