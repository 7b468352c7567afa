package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/revempire/revchat/internal/metrics"
)

// inboundEvent is a decoded protocol event queued for the hub loop.
type inboundEvent struct {
	client *Client
	event  string
	data   json.RawMessage
}

// Hub processes every protocol event for every session on a single
// goroutine, so room and session state is never mutated concurrently.
// Fan-out uses non-blocking sends into per-client buffers; a slow or
// dead recipient is dropped without stalling the broadcaster.
type Hub struct {
	registry *Registry
	logger   zerolog.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     chan inboundEvent

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub that relays events against the given registry.
// The registry is injected rather than ambient so tests and the HTTP
// introspection surface share the same instance.
func NewHub(registry *Registry, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's event loop. Call it in its own goroutine; it
// returns only when Shutdown cancels the hub context.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	client.closed = false
	h.clients[client] = true
	metrics.ConnectionsActive.Inc()
	h.logger.Info().Str("addr", client.addr).Int("clients", len(h.clients)).Msg("client connected")

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// dropClient removes a client and performs the implicit leave of its
// current room. Safe to call more than once for the same client; the
// second call is a no-op.
func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closed = true
	metrics.ConnectionsActive.Dec()

	if client.session.joined {
		h.leaveRoom(client, client.session.room)
		client.session.joined = false
	}

	close(client.send)
	h.logger.Info().Str("addr", client.addr).Int("clients", len(h.clients)).Msg("client disconnected")
}

// dispatch routes one inbound event to its handler. A panic while
// handling one session's event must not take down the loop or the
// shared registry.
func (h *Hub) dispatch(ev inboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Str("event", ev.event).Interface("panic", r).Msg("recovered from handler panic")
		}
	}()

	// Events queued by a client that was dropped mid-broadcast must not
	// resurrect it as a ghost room member.
	if _, ok := h.clients[ev.client]; !ok {
		return
	}

	switch ev.event {
	case EventJoin:
		h.handleJoin(ev.client, ev.data)
	case EventMessage:
		h.handleMessage(ev.client, ev.data)
	case EventTyping:
		h.handleTyping(ev.client)
	default:
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		h.logger.Debug().Str("event", ev.event).Msg("dropping unknown event")
	}
}

// handleJoin moves a session into a room: leave side effects on the old
// room when switching, then membership, history replay, join notice, and
// presence counts on the new one. Re-joining the current room skips the
// leave but re-runs the join side effects, which is how clients change
// their display name.
func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	cfg := currentConfig()

	var p joinPayload
	if len(data) > 0 {
		// A malformed payload degrades to the defaults, same as a
		// missing one.
		_ = json.Unmarshal(data, &p)
	}

	room := sanitize(p.Room, cfg.MaxNameLen)
	if room == "" {
		room = cfg.DefaultRoom
	}
	name := sanitize(p.Name, cfg.MaxNameLen)
	if name == "" {
		name = DefaultName
	}

	if c.session.joined && c.session.room != room {
		h.leaveRoom(c, c.session.room)
	}

	r := h.registry.GetOrCreate(room)
	c.session.room = room
	c.session.name = name
	c.session.joined = true
	r.addMember(c)

	// History is snapshotted before the join notice is appended, so a
	// joiner never sees its own notice in the replay.
	h.sendEvent(c, EventHistory, r.history())

	joinMsg := Message{
		Type: MessageTypeSystem,
		Name: name,
		Text: fmt.Sprintf("%s joined", name),
		TS:   nowMillis(),
	}
	r.append(joinMsg, cfg.HistoryLimit)
	h.broadcastRoom(r, EventSystem, joinMsg, c)

	count := r.MemberCount()
	h.broadcastRoom(r, EventUserCount, count, c)
	h.sendEvent(c, EventUserCount, count)

	h.logger.Info().Str("room", room).Str("name", name).Msg("session joined room")
}

// handleMessage validates, rate-limits, stores, and relays a chat
// message to every member of the sender's room, sender included.
// Invalid and rate-limited messages are dropped with no feedback.
func (h *Hub) handleMessage(c *Client, data json.RawMessage) {
	cfg := currentConfig()

	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		metrics.EventsDropped.WithLabelValues("malformed").Inc()
		return
	}

	text := sanitize(p.Text, cfg.MaxTextLen)
	if text == "" {
		metrics.EventsDropped.WithLabelValues("empty").Inc()
		return
	}

	now := time.Now()
	if !c.session.messageGate.allow(now) {
		metrics.EventsDropped.WithLabelValues("rate_limited").Inc()
		return
	}

	msg := Message{
		Type: MessageTypeUser,
		Name: c.session.name,
		Text: text,
		TS:   now.UnixMilli(),
		ID:   c.session.ID(),
	}

	r := h.registry.GetOrCreate(c.session.room)
	r.append(msg, cfg.HistoryLimit)
	h.broadcastRoom(r, EventMessage, msg, nil)
}

// handleTyping relays an ephemeral typing notice to the other members
// of the sender's room. Never stored, never echoed to the sender.
func (h *Hub) handleTyping(c *Client) {
	now := time.Now()
	if !c.session.typingGate.allow(now) {
		metrics.EventsDropped.WithLabelValues("rate_limited").Inc()
		return
	}

	r := h.registry.GetOrCreate(c.session.room)
	h.broadcastRoom(r, EventTyping, typingNotice{Name: c.session.name, TS: now.UnixMilli()}, c)
}

// leaveRoom removes the client from the named room and notifies the
// remaining members with a system notice and an updated member count.
func (h *Hub) leaveRoom(c *Client, roomName string) {
	r := h.registry.GetOrCreate(roomName)
	r.removeMember(c)

	leaveMsg := Message{
		Type: MessageTypeSystem,
		Name: c.session.name,
		Text: fmt.Sprintf("%s left", c.session.name),
		TS:   nowMillis(),
	}
	r.append(leaveMsg, currentConfig().HistoryLimit)
	h.broadcastRoom(r, EventSystem, leaveMsg, nil)
	h.broadcastRoom(r, EventUserCount, r.MemberCount(), nil)

	h.logger.Info().Str("room", roomName).Str("name", c.session.name).Msg("session left room")
}

// sendEvent delivers an event to a single client. A failed delivery
// drops the client the same way a failed broadcast does.
func (h *Hub) sendEvent(c *Client, event string, data any) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshaling event")
		return
	}
	if !h.safeSend(c, payload) {
		h.dropClient(c)
	}
}

// broadcastRoom fans an event out to the room's members, optionally
// excluding one client. Per-recipient failures are isolated: the failed
// clients are collected and dropped after the loop so one dead peer
// never aborts delivery to the rest.
func (h *Hub) broadcastRoom(r *Room, event string, data any, exclude *Client) {
	payload, err := marshalEvent(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshaling broadcast")
		return
	}

	var failed []*Client
	for _, member := range r.memberList() {
		if member == exclude {
			continue
		}
		if !h.safeSend(member, payload) {
			failed = append(failed, member)
		}
	}
	metrics.EventsRelayed.WithLabelValues(event).Inc()

	for _, member := range failed {
		h.logger.Warn().Str("addr", member.addr).Msg("dropping client with full send buffer")
		h.dropClient(member)
	}
}

// safeSend attempts a non-blocking delivery into the client's buffer.
// The channel may already be closed when a drop races a pump exit, so
// the send is recover-guarded.
func (h *Hub) safeSend(client *Client, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn().Interface("panic", r).Msg("recovered from send on closed channel")
			ok = false
		}
	}()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// shutdownClients closes every active connection so the pumps unwind.
func (h *Hub) shutdownClients() {
	h.logger.Info().Int("clients", len(h.clients)).Msg("closing all client connections")

	for client := range h.clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.logger.Warn().Err(err).Str("addr", client.addr).Msg("closing client connection")
		}
	}
}

// Shutdown stops the event loop and waits for the client pumps to
// finish, up to the given timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn().Msg("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
