package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseBefore(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"empty", "", time.Time{}},
		{"rfc3339", "2024-06-01T12:00:00Z", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{"unix millis", "1717243200000", time.UnixMilli(1717243200000).UTC()},
		{"garbage treated as absent", "not-a-time", time.Time{}},
		{"negative millis treated as absent", "-5", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseBefore(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseBefore(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHistoryRejectsBadRequests(t *testing.T) {
	h := NewHandler(nil, nil) // parameter validation happens before any store access

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"missing userId", "GET", "/history?friendId=u2", 400},
		{"missing conversation", "GET", "/history?userId=u1", 400},
		{"both friendId and groupId", "GET", "/history?userId=u1&friendId=u2&groupId=g1", 400},
		{"bad limit", "GET", "/history?userId=u1&friendId=u2&limit=abc", 400},
		{"zero limit", "GET", "/history?userId=u1&friendId=u2&limit=0", 400},
		{"wrong method", "POST", "/history?userId=u1&friendId=u2", 405},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.History(w, httptest.NewRequest(tt.method, tt.target, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSendMessageRejectsBadRequests(t *testing.T) {
	h := NewHandler(nil, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "nope", 400},
		{"missing fromId", `{"toId":"u2","content":"hi"}`, 400},
		{"missing recipient", `{"fromId":"u1","content":"hi"}`, 400},
		{"both toId and groupId", `{"fromId":"u1","toId":"u2","groupId":"g1","content":"hi"}`, 400},
		{"empty payload", `{"fromId":"u1","toId":"u2"}`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.SendMessage(w, httptest.NewRequest("POST", "/messages", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	w := httptest.NewRecorder()
	h.SendMessage(w, httptest.NewRequest("GET", "/messages", nil))
	if w.Code != 405 {
		t.Errorf("GET /messages status = %d, want 405", w.Code)
	}
}

func TestDeleteMessageRejectsBadRequests(t *testing.T) {
	h := NewHandler(nil, nil) // parameter validation happens before any store access

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"missing id", "DELETE", "/messages/?userId=u1", 400},
		{"missing userId", "DELETE", "/messages/m1", 400},
		{"missing both", "DELETE", "/messages/", 400},
		{"wrong method", "GET", "/messages/m1?userId=u1", 405},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.DeleteMessage(w, httptest.NewRequest(tt.method, tt.target, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
