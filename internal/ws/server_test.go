package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpgradeRejectedByConnectGate(t *testing.T) {
	config := DefaultServerConfig()
	s := NewServer(config, nil)

	var gotIP string
	s.SetConnectGate(func(remoteIP string) bool {
		gotIP = remoteIP
		return false
	})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	w := httptest.NewRecorder()

	s.handleUpgrade(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if gotIP != "203.0.113.9" {
		t.Errorf("gate keyed on %q, want host without port", gotIP)
	}
}

func TestUpgradeRejectedAtConnectionCap(t *testing.T) {
	config := DefaultServerConfig()
	config.MaxConnections = 0
	s := NewServer(config, nil)

	// The gate must not run once the cap already rejected the request.
	s.SetConnectGate(func(remoteIP string) bool {
		t.Error("connect gate called for a request over the connection cap")
		return true
	})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()

	s.handleUpgrade(w, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
