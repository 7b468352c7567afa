package relay

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/revempire/revchat/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client represents one WebSocket connection. It owns the buffered send
// channel the hub fans out into and the Session carrying protocol state.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	closed  bool
	session Session
	logger  zerolog.Logger
}

// NewClient creates a Client for the given connection with a fresh
// session initialized from the active configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxFrameSize)
	}

	session := newSession(cfg)
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     hub,
		addr:    addr,
		session: session,
		logger:  hub.logger.With().Str("addr", addr).Str("session", session.ID()).Logger(),
	}
}

// GetSendChan returns the client's send channel for reading outgoing
// frames. Read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// readPump reads frames off the socket, decodes the event envelope, and
// forwards protocol events to the hub. It exits on any read error and
// triggers unregistration, which performs the implicit leave.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug().Err(err).Msg("closing connection after read loop")
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug().Err(err).Msg("setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			// Malformed frames are dropped with no feedback, the same
			// policy as validation and rate-limit drops.
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			c.logger.Debug().Msg("dropping malformed frame")
			continue
		}

		select {
		case c.hub.events <- inboundEvent{client: c, event: env.Event, data: env.Data}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// logReadError classifies the terminal read error so expected
// disconnects stay quiet at higher log levels.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn().Int64("limit", currentConfig().MaxFrameSize).Msg("frame exceeded read limit")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.logger.Debug().Err(err).Msg("connection closed")
	default:
		c.logger.Warn().Err(err).Msg("websocket read error")
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with periodic pings. A send channel close means the
// hub dropped the client; the pump tells the peer and exits.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug().Err(err).Msg("closing connection after write loop")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Debug().Err(err).Msg("websocket write error")
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.hub.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
