// Package http provides the HTTP server for the kanban board.
package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/kanban/internal/config"
	"github.com/xiaot623/kanban/internal/hub"
	"github.com/xiaot623/kanban/internal/service"
	v1 "github.com/xiaot623/kanban/internal/transport/http/v1"
	"github.com/xiaot623/kanban/internal/transport/ws"
)

// NewServer creates the echo server serving the REST API under /api and the
// realtime channel at /ws.
func NewServer(cfg *config.Config, svc *service.Service, h *hub.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logRequest,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete,
		},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))

	// Handlers
	v1.NewHandler(svc, h).RegisterRoutes(e)
	ws.NewServer(cfg.WS, h).RegisterRoutes(e)

	return e
}

func logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	level := slog.LevelInfo
	switch {
	case v.Status >= http.StatusInternalServerError:
		level = slog.LevelError
	case v.Status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("method", v.Method),
		slog.String("uri", v.URI),
		slog.Int("status", v.Status),
		slog.Duration("latency", v.Latency),
	}
	if v.Error != nil {
		attrs = append(attrs, slog.String("error", v.Error.Error()))
	}
	slog.LogAttrs(c.Request().Context(), level, "http request", attrs...)
	return nil
}
