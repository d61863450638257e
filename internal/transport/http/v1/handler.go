// Package v1 provides the REST handlers of the kanban board.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/kanban/internal/service"
)

// ConnectionCounter reports realtime channel usage.
type ConnectionCounter interface {
	ConnectionCount() int
	Dropped() int64
}

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	conns   ConnectionCounter
}

// NewHandler creates a new handler. conns may be nil.
func NewHandler(service *service.Service, conns ConnectionCounter) *Handler {
	return &Handler{
		service: service,
		conns:   conns,
	}
}

// RegisterRoutes registers the /api routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/health", h.Health)
	api.GET("/config", h.GetConfig)
	api.GET("/agents", h.ListAgents)
	api.GET("/gateway/health", h.GatewayHealth)

	// Tickets
	api.GET("/tickets", h.ListTickets)
	api.POST("/tickets", h.CreateTicket)
	api.GET("/tickets/:id", h.GetTicket)
	api.PATCH("/tickets/:id", h.UpdateTicket)
	api.POST("/tickets/:id/move", h.MoveTicket)
	api.POST("/tickets/:id/archive", h.ArchiveTicket)

	// Discussion and history
	api.GET("/tickets/:id/comments", h.ListComments)
	api.POST("/tickets/:id/comments", h.AddComment)
	api.GET("/tickets/:id/events", h.ListEvents)
	api.GET("/tickets/:id/docs", h.GetTicketDocs)
	api.GET("/activity", h.ListActivity)
}

// Health returns health status.
// GET /api/health
func (h *Handler) Health(c echo.Context) error {
	connections := 0
	var dropped int64
	if h.conns != nil {
		connections = h.conns.ConnectionCount()
		dropped = h.conns.Dropped()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":                 true,
		"service":            "kanban-backend",
		"db":                 h.service.StorePath(),
		"connections":        connections,
		"dropped_broadcasts": dropped,
	})
}
