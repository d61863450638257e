// Command cli watches the board's realtime channel and prints every change.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/xiaot623/kanban/internal/domain"
)

// Client is a board viewer connection.
type Client struct {
	conn   *websocket.Conn
	filter Filter
	raw    bool
	done   chan struct{}
}

// NewClient connects to the realtime endpoint.
func NewClient(addr string, filter Filter, raw bool) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn:   conn,
		filter: filter,
		raw:    raw,
		done:   make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Ping sends an application-level keepalive.
func (c *Client) Ping() error {
	return c.conn.WriteJSON(map[string]string{"type": "ping"})
}

// ReadMessages reads and prints messages until the connection closes.
func (c *Client) ReadMessages() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		var msg domain.BroadcastMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			// pong or a non-board frame
			continue
		}
		if !c.filter.Match(msg) {
			continue
		}

		if c.raw {
			fmt.Println(string(data))
			continue
		}
		fmt.Println(FormatMessage(msg))
	}
}

func main() {
	addr := flag.StringP("addr", "a", "ws://localhost:8080/ws", "WebSocket server address")
	ticketID := flag.Int64P("ticket", "t", 0, "Only show messages for this ticket")
	types := flag.StringSlice("type", nil, "Only show these message types (repeatable)")
	raw := flag.Bool("json", false, "Print raw JSON frames")
	flag.Parse()

	log.SetFlags(log.Ltime)

	filter := Filter{TicketID: *ticketID}
	for _, t := range *types {
		filter.Types = append(filter.Types, domain.MessageType(strings.TrimSpace(t)))
	}

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, filter, *raw)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Println("Connected. Watching board changes.")
	fmt.Println("Commands: /ping, /quit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		case <-client.Done():
			fmt.Println("Connection closed")
			return
		case line := <-input:
			switch line {
			case "":
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/ping":
				if err := client.Ping(); err != nil {
					log.Printf("Send error: %v", err)
				}
			default:
				fmt.Println("Unknown command")
			}
		}
	}
}
