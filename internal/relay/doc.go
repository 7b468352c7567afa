// Package relay implements the RevChat room relay: a WebSocket event
// protocol with named rooms, bounded in-memory history, presence counts,
// typing indicators, and per-session rate limiting.
//
// All room and session state lives in process memory and is lost on
// restart. Protocol events are processed by a single hub goroutine so
// room mutation is never concurrent; the HTTP introspection surface
// reads through room-level locks.
package relay
