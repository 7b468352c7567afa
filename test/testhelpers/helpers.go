// Package testhelpers provides shared utilities for testing the RevChat
// relay: HTTP assertions plus WebSocket helpers that speak the event
// envelope protocol.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/revempire/revchat/internal/relay"
)

// CreateTestServer creates a test HTTP server with the given handler.
// The caller owns closing it.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request with a 5-second
// timeout, failing the test on transport errors.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket dials the relay's WebSocket endpoint with the given
// Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent frames data in an event envelope and writes it to the
// connection.
func SendEvent(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(relay.Envelope{Event: event, Data: raw})
}

// ReadEvent reads the next event envelope from the connection.
func ReadEvent(conn *websocket.Conn) (relay.Envelope, error) {
	var env relay.Envelope
	err := conn.ReadJSON(&env)
	return env, err
}

// WaitForEvent reads envelopes until one matching the named event
// arrives, skipping others, and returns its payload. Fails the test if
// the event does not arrive within timeout.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		env, err := ReadEvent(conn)
		if err != nil {
			t.Fatalf("Connection failed while waiting for %q event: %v", event, err)
		}
		if env.Event == event {
			return env.Data
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %q event", event)
		}
	}
}

// ExpectNoEvent reads for the full wait window and fails the test if an
// envelope with the named event arrives. Other events are ignored.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, event string, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		env, err := ReadEvent(conn)
		if err != nil {
			// Deadline expiry is the pass condition.
			return
		}
		if env.Event == event {
			t.Fatalf("Expected no %q event, but received one: %s", event, env.Data)
		}
	}
}

// DecodeMessage unmarshals an event payload into a relay Message.
func DecodeMessage(t *testing.T, data json.RawMessage) relay.Message {
	t.Helper()
	var msg relay.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to decode message payload: %v", err)
	}
	return msg
}

// DecodeCount unmarshals a user_count payload.
func DecodeCount(t *testing.T, data json.RawMessage) int {
	t.Helper()
	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		t.Fatalf("Failed to decode user count payload: %v", err)
	}
	return count
}

// DecodeHistory unmarshals a history payload.
func DecodeHistory(t *testing.T, data json.RawMessage) []relay.Message {
	t.Helper()
	var history []relay.Message
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("Failed to decode history payload: %v", err)
	}
	return history
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
