// Package client provides a reusable WebSocket load test client for the relay
// server. It connects using gobwas/ws (the same library the server uses),
// dispatches incoming events by type, and tracks per-connection performance
// metrics. Identity is asserted through join events, so there is no handshake
// to wait for.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Relay event types (local equivalents of internal/protocol constants).
const (
	TypeChatJoin         = "chat:join"
	TypeGroupJoin        = "group:join"
	TypeNotificationJoin = "notification:join"
	TypeChatMessage      = "chat:message"
	TypeChatSeen         = "chat:seen"
	TypeGroupMessage     = "group:message"
	TypePing             = "ping"
	TypePong             = "pong"
)

// Metrics tracks per-connection performance data.
type Metrics struct {
	ConnectLatency   time.Duration
	MessagesReceived int
	MessagesSent     int
	Errors           int
}

// Client represents a single simulated user connection to the relay server.
// It manages the WebSocket lifecycle and dispatches incoming events to
// registered handlers.
type Client struct {
	conn      net.Conn
	userID    string
	mu        sync.Mutex
	metrics   Metrics
	handlers  map[string]func(json.RawMessage)
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a load test client for the given user connected to the
// WebSocket URL. The connection is established immediately and a background
// goroutine begins reading events.
func New(ctx context.Context, url, userID string) (*Client, error) {
	start := time.Now()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Client{
		conn:     conn,
		userID:   userID,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
	c.metrics.ConnectLatency = time.Since(start)

	go c.readLoop()

	return c, nil
}

// UserID returns the simulated user's identity.
func (c *Client) UserID() string {
	return c.userID
}

// Send sends a JSON event to the server. It is goroutine-safe.
func (c *Client) Send(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.MessagesSent++
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// JoinChat subscribes this client to the direct conversation with friendID.
func (c *Client) JoinChat(friendID string) error {
	return c.Send(map[string]string{
		"type":     TypeChatJoin,
		"userId":   c.userID,
		"friendId": friendID,
	})
}

// JoinGroup subscribes this client to a group conversation.
func (c *Client) JoinGroup(groupID string) error {
	return c.Send(map[string]string{
		"type":    TypeGroupJoin,
		"groupId": groupID,
		"userId":  c.userID,
	})
}

// SendChatMessage publishes a direct message to toID. The ts field carries the
// send time in unix nanoseconds so receivers can compute round-trip latency.
func (c *Client) SendChatMessage(toID, content string) error {
	return c.Send(map[string]interface{}{
		"type":    TypeChatMessage,
		"fromId":  c.userID,
		"toId":    toID,
		"content": content,
		"ts":      time.Now().UnixNano(),
	})
}

// On registers a handler for a specific server event type. The handler
// receives the full raw JSON of the event for flexible decoding. Handlers are
// invoked from the read loop goroutine so they should not block for extended
// periods. Only one handler per event type is supported; registering a second
// handler for the same type replaces the first.
func (c *Client) On(msgType string, handler func(json.RawMessage)) {
	c.handlers[msgType] = handler
}

// Close closes the connection and stops the read loop. It is safe to call
// multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// GetMetrics returns a copy of the client's metrics.
func (c *Client) GetMetrics() Metrics {
	return c.metrics
}

// readLoop continuously reads WebSocket frames from the server and dispatches
// them to registered handlers. It runs until the connection is closed or an
// unrecoverable error occurs.
func (c *Client) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
				// Connection was intentionally closed; do not count as error.
				return
			default:
			}
			c.metrics.Errors++
			return
		}

		c.metrics.MessagesReceived++

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		if handler, ok := c.handlers[envelope.Type]; ok {
			handler(json.RawMessage(data))
		}
	}
}
