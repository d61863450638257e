// Package ws serves the realtime board channel.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/kanban/internal/config"
	"github.com/xiaot623/kanban/internal/hub"
)

// Server handles WebSocket connections for board viewers.
type Server struct {
	cfg      config.WSConfig
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg config.WSConfig, h *hub.Hub) *Server {
	def := config.Default().WS
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &Server{
		cfg: cfg,
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Board viewers are read-only; origin checks are left to the CORS layer.
				return true
			},
		},
	}
}

// RegisterRoutes mounts the realtime endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	if !s.hub.Register(conn) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return nil
	}

	if s.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.MaxMessageSize)
	}

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads viewer messages; only keepalive pings are meaningful.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "conn_id", conn.ID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and periodic pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

// handleMessage answers "ping" with "pong" and {"type":"ping"} with {"type":"pong"}.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	text := strings.TrimSpace(string(data))
	if text == "ping" {
		s.reply(conn, []byte("pong"))
		return
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type == "ping" {
		if err := s.hub.SendJSONToConnection(conn, clientMessage{Type: "pong"}); err != nil {
			slog.Debug("dropping pong", "conn_id", conn.ID, "error", err)
		}
	}
}

func (s *Server) reply(conn *hub.Connection, data []byte) {
	if err := s.hub.SendToConnection(conn, data); err != nil {
		slog.Debug("dropping pong", "conn_id", conn.ID, "error", err)
	}
}
