package relay

import (
	"encoding/json"
	"strings"
	"time"
)

// Message type discriminators.
const (
	MessageTypeUser   = "user"
	MessageTypeSystem = "system"
)

// Inbound event names accepted from clients.
const (
	EventJoin    = "join"
	EventMessage = "chat:message"
	EventTyping  = "typing"
)

// Outbound event names emitted to clients.
const (
	EventHistory   = "history"
	EventSystem    = "system"
	EventUserCount = "user_count"
)

// Message is a single chat or system entry in a room's history. It is
// immutable once appended.
type Message struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
	ID   string `json:"id,omitempty"`
}

// Envelope is the framing for every event exchanged over the socket:
// a name plus an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinPayload struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type typingNotice struct {
	Name string `json:"name"`
	TS   int64  `json:"ts"`
}

// marshalEvent frames data as an Envelope ready for the wire.
func marshalEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
