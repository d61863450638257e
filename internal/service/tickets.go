package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xiaot623/kanban/internal/domain"
	"github.com/xiaot623/kanban/internal/logger"
)

const defaultActor = "User"

func actorOrDefault(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return defaultActor
	}
	return actor
}

// CreateTicket stores a new ticket in the default lane.
func (s *Service) CreateTicket(ctx context.Context, req domain.CreateTicketRequest) (*domain.Ticket, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	now := s.clock()
	ticket := &domain.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.DefaultStatus,
		Assignee:    req.Assignee,
		Priority:    req.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event, err := s.store.CreateTicket(ctx, ticket, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		return domain.NewEvent(t.ID, domain.EventTypeTicketCreated, defaultActor, "Created ticket: "+t.Title,
			domain.TicketCreatedPayload{Title: t.Title, Status: t.Status, Priority: t.Priority, Assignee: t.Assignee}, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketCreated, TicketID: ticket.ID, Ticket: ticket})
	s.publishEvents(ctx, event)
	return ticket, nil
}

// GetTicket returns the ticket or domain.ErrNotFound.
func (s *Service) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return ticket, nil
}

// ListTickets returns tickets matching filter.
func (s *Service) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status '%s'", domain.ErrValidation, filter.Status)
	}
	tickets, err := s.store.ListTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicket applies a partial edit. Status is never changed here.
// When nothing differs the current ticket is returned without a write.
func (s *Service) UpdateTicket(ctx context.Context, id int64, req domain.UpdateTicketRequest) (*domain.Ticket, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ticket, event, err := s.store.MutateTicket(ctx, id, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		if t.Archived() {
			return nil, fmt.Errorf("%w: cannot edit archived ticket", domain.ErrArchived)
		}
		changes := req.Apply(t)
		if len(changes) == 0 {
			return nil, nil
		}
		t.UpdatedAt = s.clock()
		return domain.NewEvent(t.ID, domain.EventTypeTicketUpdated, defaultActor, domain.SummarizeChanges(changes),
			domain.TicketUpdatedPayload{Changes: changes}, t.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return ticket, nil
	}

	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketUpdated, TicketID: ticket.ID, Ticket: ticket})
	s.publishEvents(ctx, event)
	return ticket, nil
}

// ArchiveTicket hides a ticket from the board. Archived tickets are immutable.
func (s *Service) ArchiveTicket(ctx context.Context, id int64, actor string) (*domain.Ticket, error) {
	actor = actorOrDefault(actor)

	ticket, event, err := s.store.MutateTicket(ctx, id, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		if t.Archived() {
			return nil, fmt.Errorf("%w: %d", domain.ErrAlreadyArchived, t.ID)
		}
		now := s.clock()
		t.ArchivedAt = &now
		t.UpdatedAt = now
		return domain.NewEvent(t.ID, domain.EventTypeTicketArchived, actor, fmt.Sprintf("Archived from %s", t.Status),
			domain.TicketArchivedPayload{FromStatus: t.Status}, now)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketArchived, TicketID: ticket.ID, Ticket: ticket})
	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketUpdated, TicketID: ticket.ID, Ticket: ticket})
	s.publishEvents(ctx, event)
	return ticket, nil
}

// MoveTicket changes a ticket's lane and then runs agent pickup. Pickup
// failures are reported in the result and never fail the move.
func (s *Service) MoveTicket(ctx context.Context, id int64, req domain.MoveRequest) (*domain.MoveResult, error) {
	actor := actorOrDefault(req.Actor)
	to := domain.Status(strings.TrimSpace(string(req.Status)))

	var (
		from    domain.Status
		noop    bool
		cleared bool
	)
	ticket, event, err := s.store.MutateTicket(ctx, id, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		var err error
		if noop, err = domain.ValidateTransition(t, to); err != nil {
			return nil, err
		}
		from = t.Status
		if noop {
			return nil, nil
		}
		if !to.AgentEligible() && t.AgentSessionKey != nil {
			t.AgentSessionKey = nil
			cleared = true
		}
		t.Status = to
		t.UpdatedAt = s.clock()
		return domain.NewEvent(t.ID, domain.EventTypeTicketMoved, actor, fmt.Sprintf("%s -> %s", from, to),
			domain.TicketMovedPayload{From: from, To: to, SessionCleared: cleared}, t.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}

	result := &domain.MoveResult{OK: true, Ticket: ticket, From: from, To: to, Warnings: []string{}}
	if noop {
		return result, nil
	}

	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketMoved, TicketID: ticket.ID, Ticket: ticket, From: from, To: to})
	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketUpdated, TicketID: ticket.ID, Ticket: ticket})
	s.publishEvents(ctx, event)

	ctx = logger.WithLogFields(ctx, logger.LogFields{TicketID: logger.Ptr(ticket.ID), Component: "kanban.service.dispatcher"})
	pickup := s.dispatcher.OnMove(ctx, ticket, from)

	result.Pickup = pickup.Outcome
	result.Warnings = append(result.Warnings, pickup.Warnings...)
	s.publishEvents(ctx, pickup.Events...)
	if pickup.Ticket != nil {
		result.Ticket = pickup.Ticket
		s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageTicketUpdated, TicketID: pickup.Ticket.ID, Ticket: pickup.Ticket})
	}

	if len(result.Warnings) > 0 {
		slog.InfoContext(ctx, "ticket moved with automation warnings",
			"from", from, "to", to, "warnings", result.Warnings)
	}
	return result, nil
}
