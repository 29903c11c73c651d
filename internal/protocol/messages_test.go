package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantErr  bool
	}{
		{
			name:     "chat join",
			input:    `{"type":"chat:join","userId":"u1","friendId":"u2"}`,
			wantType: TypeChatJoin,
		},
		{
			name:     "group join",
			input:    `{"type":"group:join","groupId":"g1","userId":"u1"}`,
			wantType: TypeGroupJoin,
		},
		{
			name:     "notification join",
			input:    `{"type":"notification:join","userId":"u1"}`,
			wantType: TypeNotificationJoin,
		},
		{
			name:     "chat message",
			input:    `{"type":"chat:message","fromId":"u1","toId":"u2","content":"hi"}`,
			wantType: TypeChatMessage,
		},
		{
			name:     "seen receipt",
			input:    `{"type":"chat:seen","fromId":"u1","toId":"u2","messageId":"m1"}`,
			wantType: TypeChatSeen,
		},
		{
			name:     "call offer",
			input:    `{"type":"call:offer","callId":"c1","fromId":"u1","toId":"u2","sdp":{"type":"offer"}}`,
			wantType: TypeCallOffer,
		},
		{
			name:     "report",
			input:    `{"type":"chat:report","reporterId":"u1","reportedId":"u2","reason":"spam"}`,
			wantType: TypeChatReport,
		},
		{
			name:     "ping",
			input:    `{"type":"ping"}`,
			wantType: TypePing,
		},
		{
			name:    "missing type",
			input:   `{"userId":"u1"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			input:   `{"type":"does:not:exist"}`,
			wantErr: true,
		},
		{
			name:    "server-only type",
			input:   `{"type":"friend:request","toId":"u1"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `hello`,
			wantErr: true,
		},
		{
			name:    "type not a string",
			input:   `{"type":42}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgType, msg, err := ParseClientMessage([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClientMessage(%s) = %v, want error", tt.input, msg)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClientMessage(%s) error: %v", tt.input, err)
			}
			if msgType != tt.wantType {
				t.Errorf("type = %q, want %q", msgType, tt.wantType)
			}
			if msg == nil {
				t.Error("msg = nil, want decoded struct")
			}
		})
	}
}

func TestParseClientMessageDecodesFields(t *testing.T) {
	raw := `{"type":"chat:message","fromId":"u1","toId":"u2","content":"hello","fileUrl":"https://cdn/x.png","isImage":true}`

	_, msg, err := ParseClientMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseClientMessage: %v", err)
	}

	m, ok := msg.(ChatMessageMsg)
	if !ok {
		t.Fatalf("msg type = %T, want ChatMessageMsg", msg)
	}
	if m.FromID != "u1" || m.ToID != "u2" || m.Content != "hello" {
		t.Errorf("decoded fields = %+v", m)
	}
	if m.FileURL != "https://cdn/x.png" || !m.IsImage {
		t.Errorf("file fields = %+v", m)
	}
}

func TestAllCallTypesDecodeAsSignal(t *testing.T) {
	for _, callType := range []string{
		TypeCallOffer, TypeCallAnswer, TypeCallICECandidate, TypeCallEnd, TypeCallReject,
	} {
		raw := `{"type":"` + callType + `","callId":"c1","fromId":"u1","toId":"u2"}`
		_, msg, err := ParseClientMessage([]byte(raw))
		if err != nil {
			t.Errorf("ParseClientMessage(%s): %v", callType, err)
			continue
		}
		if _, ok := msg.(CallSignalMsg); !ok {
			t.Errorf("%s decoded as %T, want CallSignalMsg", callType, msg)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		msg  interface{ Valid() bool }
		want bool
	}{
		{"chat join ok", ChatJoinMsg{UserID: "u1", FriendID: "u2"}, true},
		{"chat join missing friend", ChatJoinMsg{UserID: "u1"}, false},
		{"group join ok", GroupJoinMsg{GroupID: "g1"}, true},
		{"group join empty", GroupJoinMsg{}, false},
		{"notification join ok", NotificationJoinMsg{UserID: "u1"}, true},
		{"text message ok", ChatMessageMsg{FromID: "u1", ToID: "u2", Content: "hi"}, true},
		{"file-only message ok", ChatMessageMsg{FromID: "u1", ToID: "u2", FileURL: "x"}, true},
		{"shared-only message ok", ChatMessageMsg{FromID: "u1", ToID: "u2", SharedID: "p1"}, true},
		{"empty message", ChatMessageMsg{FromID: "u1", ToID: "u2"}, false},
		{"message missing recipient", ChatMessageMsg{FromID: "u1", Content: "hi"}, false},
		{"seen ok", ChatSeenMsg{FromID: "u1", ToID: "u2", MessageID: "m1"}, true},
		{"seen missing message id", ChatSeenMsg{FromID: "u1", ToID: "u2"}, false},
		{"group message ok", GroupMessageMsg{GroupID: "g1", FromID: "u1", Content: "hi"}, true},
		{"group message empty", GroupMessageMsg{GroupID: "g1", FromID: "u1"}, false},
		{"call signal ok", CallSignalMsg{CallID: "c1", FromID: "u1", ToID: "u2"}, true},
		{"call signal missing call id", CallSignalMsg{FromID: "u1", ToID: "u2"}, false},
		{"report ok", ChatReportMsg{ReporterID: "u1", ReportedID: "u2", Reason: "spam"}, true},
		{"report missing reason", ChatReportMsg{ReporterID: "u1", ReportedID: "u2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewServerMessage(t *testing.T) {
	data, err := NewServerMessage(TypeFriendRequest, FriendRequestMsg{
		RequestID: "r1",
		FromID:    "u1",
		ToID:      "u2",
	})
	if err != nil {
		t.Fatalf("NewServerMessage: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeFriendRequest {
		t.Errorf("type = %v, want %q", decoded["type"], TypeFriendRequest)
	}
	if decoded["requestId"] != "r1" || decoded["fromId"] != "u1" || decoded["toId"] != "u2" {
		t.Errorf("payload = %v", decoded)
	}
}

func TestEnvelopeKeepsRawBytes(t *testing.T) {
	raw := `{"type":"chat:message","fromId":"u1","toId":"u2","content":"hi"}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeChatMessage {
		t.Errorf("type = %q, want %q", env.Type, TypeChatMessage)
	}
	if string(env.Raw) != raw {
		t.Errorf("raw = %s, want original bytes", env.Raw)
	}
}
