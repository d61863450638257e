package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/kanban/internal/docs"
	"github.com/xiaot623/kanban/internal/domain"
)

// ListEvents returns a ticket's audit trail, newest first.
func (s *Service) ListEvents(ctx context.Context, ticketID int64) ([]domain.TicketEvent, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// ListActivity returns the board-wide activity feed.
func (s *Service) ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	entries, err := s.store.ListActivity(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}

// TicketDocs lists the docs folder linked to a ticket.
func (s *Service) TicketDocs(ctx context.Context, ticketID int64) (*docs.Listing, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.docs.List(ticket.ID, ticket.Title)
}
