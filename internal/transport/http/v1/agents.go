package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetConfig returns the board configuration.
// GET /api/config
func (h *Handler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.BoardConfig(c.Request().Context()))
}

// ListAgents returns the cached gateway agent directory.
// GET /api/agents?force_refresh=
func (h *Handler) ListAgents(c echo.Context) error {
	force, err := queryBool(c, "force_refresh")
	if err != nil {
		return errorResponse(c, err)
	}
	resp, err := h.service.Agents(c.Request().Context(), force)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GatewayHealth reports whether the agent gateway is reachable.
// GET /api/gateway/health
func (h *Handler) GatewayHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.GatewayHealth(c.Request().Context()))
}
