package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/kanban/internal/domain"
	"github.com/xiaot623/kanban/internal/logger"
)

// AddComment appends a comment and forwards it to the ticket's agent session
// when one is active. Forwarding failures are reported, never returned.
func (s *Service) AddComment(ctx context.Context, ticketID int64, req domain.CommentRequest) (*domain.CommentResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID:  ticketID,
		Author:    req.Author,
		Content:   req.Content,
		CreatedAt: s.clock(),
	}
	ticket, event, err := s.store.CreateComment(ctx, comment, func(c *domain.TicketComment) (*domain.TicketEvent, error) {
		return domain.NewEvent(c.TicketID, domain.EventTypeCommentAdded, c.Author, domain.Excerpt(c.Content),
			domain.CommentAddedPayload{CommentID: c.ID, Author: c.Author, Excerpt: domain.Excerpt(c.Content)}, c.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.BroadcastMessage{Type: domain.MessageCommentAdded, TicketID: ticketID, Comment: comment})
	s.publishEvents(ctx, event)

	ctx = logger.WithLogFields(ctx, logger.LogFields{TicketID: logger.Ptr(ticketID), Component: "kanban.service.dispatcher"})
	notify := s.dispatcher.OnComment(ctx, ticket, comment)
	s.publishEvents(ctx, notify.Events...)

	warnings := notify.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &domain.CommentResult{TicketComment: *comment, Notify: notify.Outcome, Warnings: warnings}, nil
}

// ListComments returns a ticket's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
