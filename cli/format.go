package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/kanban/internal/domain"
)

// Filter narrows the printed stream.
type Filter struct {
	TicketID int64
	Types    []domain.MessageType
}

// Match reports whether msg passes the filter. Zero values match everything.
func (f Filter) Match(msg domain.BroadcastMessage) bool {
	if f.TicketID != 0 && msg.TicketID != f.TicketID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == msg.Type {
			return true
		}
	}
	return false
}

// FormatMessage renders one broadcast as a single line.
func FormatMessage(msg domain.BroadcastMessage) string {
	var b strings.Builder
	if msg.Ts > 0 {
		b.WriteString(time.UnixMilli(msg.Ts).Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "[%s] #%d", msg.Type, msg.TicketID)

	switch msg.Type {
	case domain.MessageTicketMoved:
		fmt.Fprintf(&b, " %s -> %s", msg.From, msg.To)
	case domain.MessageCommentAdded:
		if msg.Comment != nil {
			fmt.Fprintf(&b, " %s: %s", msg.Comment.Author, truncate(msg.Comment.Content, 60))
		}
	case domain.MessageTicketEvent:
		if msg.Event != nil {
			actor := "unknown"
			if msg.Event.Actor != nil {
				actor = *msg.Event.Actor
			}
			fmt.Fprintf(&b, " %s by %s", msg.Event.EventType, actor)
		}
	default:
		if msg.Ticket != nil {
			fmt.Fprintf(&b, " %q (%s, %s)", msg.Ticket.Title, msg.Ticket.Status, msg.Ticket.Assignee)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
