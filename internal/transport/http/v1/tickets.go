package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/kanban/internal/domain"
)

// ListTickets lists tickets.
// GET /api/tickets?status=&assignee=&archived=
func (h *Handler) ListTickets(c echo.Context) error {
	archived, err := queryBool(c, "archived")
	if err != nil {
		return errorResponse(c, err)
	}
	filter := domain.TicketFilter{
		Status:   domain.Status(strings.TrimSpace(c.QueryParam("status"))),
		Assignee: strings.TrimSpace(c.QueryParam("assignee")),
		Archived: archived,
	}

	tickets, err := h.service.ListTickets(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

// CreateTicket creates a ticket in the first lane.
// POST /api/tickets
func (h *Handler) CreateTicket(c echo.Context) error {
	var req domain.CreateTicketRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ticket, err := h.service.CreateTicket(c.Request().Context(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// GetTicket returns one ticket.
// GET /api/tickets/:id
func (h *Handler) GetTicket(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	ticket, err := h.service.GetTicket(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// UpdateTicket edits title, description, assignee or priority.
// PATCH /api/tickets/:id
func (h *Handler) UpdateTicket(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	var req domain.UpdateTicketRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ticket, err := h.service.UpdateTicket(c.Request().Context(), id, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}

// MoveTicket changes a ticket's lane. Query parameters take precedence over
// a JSON body.
// POST /api/tickets/:id/move?status=&actor=
func (h *Handler) MoveTicket(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req domain.MoveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if status := c.QueryParam("status"); status != "" {
		req.Status = domain.Status(status)
	}
	if actor := c.QueryParam("actor"); actor != "" {
		req.Actor = actor
	}
	if strings.TrimSpace(string(req.Status)) == "" {
		return badRequest(c, "status is required")
	}

	result, err := h.service.MoveTicket(c.Request().Context(), id, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type archiveRequest struct {
	Actor string `json:"actor"`
}

// ArchiveTicket archives a ticket.
// POST /api/tickets/:id/archive?actor=
func (h *Handler) ArchiveTicket(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var req archiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if actor := c.QueryParam("actor"); actor != "" {
		req.Actor = actor
	}

	ticket, err := h.service.ArchiveTicket(c.Request().Context(), id, req.Actor)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}
