// Package hub provides connection management for realtime board viewers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xiaot623/kanban/internal/domain"
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 256

// ErrBufferFull is returned when a connection's send queue is full.
var ErrBufferFull = errors.New("send buffer full")

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *Hub
	mu   sync.Mutex
}

// Hub owns the set of live connections and fans every broadcast out to all of them.
type Hub struct {
	connections map[string]*Connection

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	done       chan struct{}

	sendBuffer int
	dropped    atomic.Int64
	mu         sync.RWMutex
}

// NewHub creates a new Hub. sendBuffer <= 0 uses DefaultSendBuffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		connections: make(map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte, 1024),
		done:        make(chan struct{}),
		sendBuffer:  sendBuffer,
	}
}

// Run starts the hub's main loop. When ctx is cancelled every connection's
// send queue is closed and the connection set is cleared.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				close(conn.Send)
				delete(h.connections, id)
			}
			h.mu.Unlock()
			slog.Info("hub stopped")
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			slog.Debug("connection registered", "conn_id", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			h.mu.Unlock()
			slog.Debug("connection unregistered", "conn_id", conn.ID)

		case data := <-h.broadcast:
			h.mu.Lock()
			for _, conn := range h.connections {
				select {
				case conn.Send <- data:
				default:
					// A viewer that cannot keep up is dropped; it reloads on reconnect.
					slog.Warn("connection buffer full, closing", "conn_id", conn.ID)
					h.remove(conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(conn *Connection) {
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		close(conn.Send)
	}
}

// NewConnection creates a new, unregistered connection.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, h.sendBuffer),
		hub:  h,
	}
}

// Register adds a connection. It returns false once the hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection and closes its send queue.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues data for every connection without blocking the caller.
// Messages are dropped only when the hub itself is saturated or stopped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		slog.Warn("hub broadcast queue full, dropping message")
	}
}

// BroadcastJSON marshals v and broadcasts it.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Publish broadcasts a board change, stamping it with the current time when unset.
func (h *Hub) Publish(ctx context.Context, msg domain.BroadcastMessage) {
	if msg.Ts == 0 {
		msg.Ts = time.Now().UnixMilli()
	}
	if err := h.BroadcastJSON(msg); err != nil {
		slog.ErrorContext(ctx, "failed to encode broadcast", "type", msg.Type, "error", err)
	}
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) (err error) {
	// The hub may close Send concurrently on overflow or shutdown.
	defer func() {
		if recover() != nil {
			err = ErrBufferFull
		}
	}()
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Dropped returns how many broadcasts were discarded because the hub queue was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
