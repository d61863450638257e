package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/kanban/internal/domain"
)

// ListComments lists a ticket's comments, oldest first.
// GET /api/tickets/:id/comments
func (h *Handler) ListComments(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	comments, err := h.service.ListComments(c.Request().Context(), id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}

// AddComment posts a comment. The response carries the forwarding outcome.
// POST /api/tickets/:id/comments
func (h *Handler) AddComment(c echo.Context) error {
	id, err := ticketID(c)
	if err != nil {
		return errorResponse(c, err)
	}
	var req domain.CommentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.service.AddComment(c.Request().Context(), id, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
