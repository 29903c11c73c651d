package ws

import (
	"log"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/metrics"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/protocol"
)

// EventHandler is the callback signature for handling a parsed client event.
// The msg parameter is the concrete struct returned by
// protocol.ParseClientMessage (e.g., protocol.ChatMessageMsg); raw holds the
// original bytes so relayed events fan out verbatim, without a re-encode.
type EventHandler func(conn *Connection, msg interface{}, raw []byte)

// EventDispatcher routes incoming WebSocket events to registered handlers
// based on the event type. It handles the built-in ping/pong keepalive
// internally. The relay channel is best-effort: malformed or unknown events
// are dropped silently (logged and counted, never surfaced to the sender).
type EventDispatcher struct {
	handlers map[string]EventHandler
}

// NewEventDispatcher creates an empty EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string]EventHandler),
	}
}

// Register associates an EventHandler with an event type. If a handler was
// already registered for the given type, it is silently replaced.
func (d *EventDispatcher) Register(msgType string, handler EventHandler) {
	d.handlers[msgType] = handler
}

// Dispatch is the onMessage callback implementation. It parses the raw bytes
// into a typed event, handles ping internally, and routes all other types to
// the registered handler. Parse failures and unregistered types drop the
// event.
func (d *EventDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		metrics.EventsDropped.WithLabelValues("parse_error").Inc()
		log.Printf("ws: dropped unparseable event conn=%s: %v", conn.ID(), err)
		return
	}

	// Built-in ping handler — respond immediately without requiring registration.
	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		metrics.EventsDropped.WithLabelValues("unsupported_type").Inc()
		log.Printf("ws: dropped unsupported event type=%q conn=%s", msgType, conn.ID())
		return
	}

	metrics.EventsTotal.WithLabelValues(msgType).Inc()
	handler(conn, msg, data)
}

// sendPong responds to a client ping with a pong event and records the
// keepalive as activity.
func (d *EventDispatcher) sendPong(conn *Connection) {
	conn.touch()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Printf("ws: failed to build pong conn=%s: %v", conn.ID(), err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send pong conn=%s: %v", conn.ID(), err)
	}
}
