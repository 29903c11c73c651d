// Package protocol defines the WebSocket event types and structures carried on
// the relay channel between clients and the server. All events are serialized
// as JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Client -> Server event types.
const (
	TypeChatJoin         = "chat:join"
	TypeGroupJoin        = "group:join"
	TypeNotificationJoin = "notification:join"
	TypeChatMessage      = "chat:message"
	TypeChatSeen         = "chat:seen"
	TypeGroupMessage     = "group:message"
	TypeCallOffer        = "call:offer"
	TypeCallAnswer       = "call:answer"
	TypeCallICECandidate = "call:ice-candidate"
	TypeCallEnd          = "call:end"
	TypeCallReject       = "call:reject"
	TypeChatReport       = "chat:report"
	TypePing             = "ping"
)

// Server -> Client event types. Relayed events keep their inbound type; these
// are the server-originated ones.
const (
	TypeFriendRequest = "friend:request"
	TypePong          = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event type and the raw JSON payload. The raw bytes are
// kept so the relay can fan an event out verbatim after validation, without a
// decode/re-encode round trip.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Join events
// ---------------------------------------------------------------------------

// ChatJoinMsg subscribes the connection to the direct-pair topic for the two
// users. Authorization (are they actually friends) happens in the REST layer
// before the client ever issues this event.
type ChatJoinMsg struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

// Valid reports whether all required fields are present.
func (m ChatJoinMsg) Valid() bool { return m.UserID != "" && m.FriendID != "" }

// GroupJoinMsg subscribes the connection to a group topic.
type GroupJoinMsg struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

func (m GroupJoinMsg) Valid() bool { return m.GroupID != "" }

// NotificationJoinMsg subscribes the connection to the user's personal
// notification topic (out-of-band alerts such as incoming friend requests).
type NotificationJoinMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

func (m NotificationJoinMsg) Valid() bool { return m.UserID != "" }

// ---------------------------------------------------------------------------
// Message and receipt events
// ---------------------------------------------------------------------------

// ChatMessageMsg is a direct message relayed between two users. The relay does
// not persist it; the durable copy is written by the REST send path.
type ChatMessageMsg struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	FromID  string `json:"fromId"`
	ToID    string `json:"toId"`
	Content string `json:"content,omitempty"`

	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileMime string `json:"fileMime,omitempty"`
	IsImage  bool   `json:"isImage,omitempty"`

	SharedID         string `json:"sharedId,omitempty"`
	SharedType       string `json:"sharedType,omitempty"`
	SharedURL        string `json:"sharedUrl,omitempty"`
	SharedCaption    string `json:"sharedCaption,omitempty"`
	SharedAuthorID   string `json:"sharedAuthorId,omitempty"`
	SharedAuthorName string `json:"sharedAuthorName,omitempty"`

	Ts int64 `json:"ts,omitempty"`
}

func (m ChatMessageMsg) Valid() bool {
	return m.FromID != "" && m.ToID != "" &&
		(m.Content != "" || m.FileURL != "" || m.SharedID != "")
}

// ChatSeenMsg acknowledges that a message has been read by the recipient.
type ChatSeenMsg struct {
	Type      string `json:"type"`
	FromID    string `json:"fromId"`
	ToID      string `json:"toId"`
	MessageID string `json:"messageId"`
}

func (m ChatSeenMsg) Valid() bool { return m.FromID != "" && m.ToID != "" && m.MessageID != "" }

// GroupMessageMsg is a message relayed to every member of a group topic.
type GroupMessageMsg struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	GroupID string `json:"groupId"`
	FromID  string `json:"fromId"`
	Content string `json:"content,omitempty"`

	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileMime string `json:"fileMime,omitempty"`
	IsImage  bool   `json:"isImage,omitempty"`

	Ts int64 `json:"ts,omitempty"`
}

func (m GroupMessageMsg) Valid() bool {
	return m.GroupID != "" && m.FromID != "" && (m.Content != "" || m.FileURL != "")
}

// ---------------------------------------------------------------------------
// Call signaling events
// ---------------------------------------------------------------------------

// CallSignalMsg covers all call signaling events (offer, answer, ICE
// candidate, end, reject). They share a shape: a call id, the two parties, and
// an opaque signaling payload. The relay delivers them to the other party
// only; the sender never receives its own signal back.
type CallSignalMsg struct {
	Type      string          `json:"type"`
	CallID    string          `json:"callId"`
	FromID    string          `json:"fromId"`
	ToID      string          `json:"toId"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func (m CallSignalMsg) Valid() bool { return m.CallID != "" && m.FromID != "" && m.ToID != "" }

// ---------------------------------------------------------------------------
// Report event
// ---------------------------------------------------------------------------

// ChatReportMsg files an abuse report against another user. Unlike the other
// relay events it is not fanned out; it is persisted for moderator review.
type ChatReportMsg struct {
	Type            string `json:"type"`
	ReporterID      string `json:"reporterId"`
	ReportedID      string `json:"reportedId"`
	ConversationKey string `json:"conversationKey,omitempty"`
	Reason          string `json:"reason"`
}

func (m ChatReportMsg) Valid() bool {
	return m.ReporterID != "" && m.ReportedID != "" && m.Reason != ""
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client event structs
// ---------------------------------------------------------------------------

// FriendRequestMsg is pushed to the target user's notification topic when an
// incoming friend request is created by the REST collaborator.
type FriendRequestMsg struct {
	Type       string `json:"type"`
	RequestID  string `json:"requestId"`
	FromID     string `json:"fromId"`
	FromName   string `json:"fromName,omitempty"`
	FromAvatar string `json:"fromAvatar,omitempty"`
	ToID       string `json:"toId"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client event.
// It returns the event type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only event types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeChatJoin:
		var m ChatJoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeGroupJoin:
		var m GroupJoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNotificationJoin:
		var m NotificationJoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatMessage:
		var m ChatMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatSeen:
		var m ChatSeenMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeGroupMessage:
		var m GroupMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCallOffer, TypeCallAnswer, TypeCallICECandidate, TypeCallEnd, TypeCallReject:
		var m CallSignalMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatReport:
		var m ChatReportMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server event.
// The msgType is injected into the payload under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server event: %w", err)
	}
	return out, nil
}
