package service

import (
	"fmt"
	"strings"

	"github.com/xiaot623/kanban/internal/domain"
)

const (
	planInstruction      = "Perform planning and analysis only, then move the ticket to Review when planning is complete."
	implementInstruction = "Implement the requested change, then move the ticket to Review when implementation is complete."
)

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// BuildSpawnPrompt is the task handed to a newly spawned agent session.
func BuildSpawnPrompt(t *domain.Ticket, apiBaseURL string) string {
	instruction := implementInstruction
	if t.Status == domain.StatusPlan {
		instruction = planInstruction
	}
	commentsURL := fmt.Sprintf("%s/api/tickets/%d/comments", strings.TrimRight(apiBaseURL, "/"), t.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "# Ticket #%d: %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&b, "Description:\n%s\n\n", orDefault(t.Description, "(none)"))
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Assignee: %s\n", t.Assignee)
	fmt.Fprintf(&b, "Current Status: %s\n\n", t.Status)
	fmt.Fprintf(&b, "You were assigned this ticket because it moved to %s.\n", t.Status)
	b.WriteString("Read the ticket and existing comments before starting, especially the latest comment.\n")
	b.WriteString(instruction + "\n")
	b.WriteString("Report updates by posting comments to the Kanban API.\n")
	fmt.Fprintf(&b, "POST %s with JSON {\"author\":\"%s\",\"content\":\"update\"}\n", commentsURL, t.Assignee)
	b.WriteString("Keep the response concise and actionable.")
	return b.String()
}

// BuildFollowupPrompt is the message sent to an active session when its
// ticket receives a comment.
func BuildFollowupPrompt(t *domain.Ticket, c *domain.TicketComment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d received a new comment.\n\n", t.ID)
	fmt.Fprintf(&b, "Title: %s\n", orDefault(t.Title, "(untitled)"))
	fmt.Fprintf(&b, "Status: %s\n", orDefault(string(t.Status), "(unknown)"))
	fmt.Fprintf(&b, "Author: %s\n\n", orDefault(c.Author, "Unknown"))
	fmt.Fprintf(&b, "New comment:\n%s\n\n", orDefault(c.Content, "(empty)"))
	b.WriteString("Read ticket details and latest comments before responding. Post a concise update comment if action is needed.")
	return b.String()
}
