// Package store defines the ticket persistence interface and its SQLite implementation.
package store

import (
	"context"

	"github.com/xiaot623/kanban/internal/domain"
)

// MutateFunc edits a ticket loaded inside a write transaction. Returning a nil
// event means nothing changed and the transaction is rolled back.
type MutateFunc func(t *domain.Ticket) (*domain.TicketEvent, error)

// Store defines the interface for ticket persistence.
type Store interface {
	// Ticket operations
	CreateTicket(ctx context.Context, t *domain.Ticket, build func(*domain.Ticket) (*domain.TicketEvent, error)) (*domain.TicketEvent, error)
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error)
	MutateTicket(ctx context.Context, id int64, fn MutateFunc) (*domain.Ticket, *domain.TicketEvent, error)

	// Comment operations
	CreateComment(ctx context.Context, c *domain.TicketComment, build func(*domain.TicketComment) (*domain.TicketEvent, error)) (*domain.Ticket, *domain.TicketEvent, error)
	ListComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.TicketEvent) error
	ListEvents(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error)
	ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error)

	// Lifecycle
	Path() string
	Close() error
}
