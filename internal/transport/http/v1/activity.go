package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/kanban/internal/domain"
)

// ListEvents lists a ticket's events, newest first.
// GET /api/tickets/:id/events
func (h *Handler) ListEvents(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	events, err := h.service.ListEvents(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// ListActivity returns the board-wide activity feed.
// GET /api/activity?limit=&offset=&ticket_id=&event_type=&include_archived=
func (h *Handler) ListActivity(c echo.Context) error {
	var filter domain.ActivityFilter

	limit, ok, err := queryInt(c, "limit")
	if err != nil {
		return errorResponse(c, err)
	}
	if ok {
		if limit == 0 {
			return badRequest(c, fmt.Sprintf("limit must be between 1 and %d", domain.MaxActivityLimit))
		}
		filter.Limit = limit
	}
	if filter.Offset, _, err = queryInt(c, "offset"); err != nil {
		return errorResponse(c, err)
	}
	if raw := strings.TrimSpace(c.QueryParam("ticket_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "ticket_id must be an integer")
		}
		filter.TicketID = &id
	}
	filter.EventType = domain.EventType(strings.TrimSpace(c.QueryParam("event_type")))
	if filter.IncludeArchived, err = queryBool(c, "include_archived"); err != nil {
		return errorResponse(c, err)
	}

	entries, err := h.service.ListActivity(c.Request().Context(), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// GetTicketDocs lists the docs folder linked to a ticket.
// GET /api/tickets/:id/docs
func (h *Handler) GetTicketDocs(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	listing, err := h.service.TicketDocs(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}
