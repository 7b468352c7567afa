package relay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// API bundles the hub and registry behind the HTTP surface. Both are
// injected at construction; there is no ambient server state.
type API struct {
	hub      *Hub
	registry *Registry
	logger   zerolog.Logger
}

// NewAPI creates the HTTP handler set for the given hub and registry.
func NewAPI(hub *Hub, registry *Registry, logger zerolog.Logger) *API {
	return &API{hub: hub, registry: registry, logger: logger}
}

// WebSocket upgrades the request and registers the new client with the
// hub, which launches the read/write pumps.
func (a *API) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, a.hub, r.RemoteAddr)

	select {
	case a.hub.register <- client:
	case <-a.hub.ctx.Done():
		_ = conn.Close()
	}
}

// Rooms returns introspection data for every known room. Read-only, no
// side effects; an empty registry yields an empty list, never an error.
func (a *API) Rooms(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.registry.List()); err != nil {
		a.logger.Warn().Err(err).Msg("writing rooms response")
	}
}

// Health is a plain-text liveness probe.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "RevChat relay is running!")
}

// Widget serves a minimal chat page wired to the relay protocol, useful
// for poking the server without the full embeddable widget.
func (a *API) Widget(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, widgetPage); err != nil {
		a.logger.Warn().Err(err).Msg("writing widget page")
	}
}

const widgetPage = `<!DOCTYPE html>
<html>
<head>
    <title>RevChat Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 640px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        .system { color: gray; font-style: italic; }
        .typing { color: #999; }
        input { padding: 5px; margin-right: 6px; }
        #text { width: 300px; }
    </style>
</head>
<body>
    <h1>RevChat Relay Test</h1>
    <div>
        <input type="text" id="room" placeholder="room" value="global">
        <input type="text" id="name" placeholder="name" value="Anonymous">
        <button onclick="join()">Join</button>
        <span id="count"></span>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="send()">Send</button>
    </div>
    <script>
        const messages = document.getElementById('messages');
        const count = document.getElementById('count');
        const text = document.getElementById('text');
        const ws = new WebSocket('ws://' + location.host + '/ws');

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function line(html, cls) {
            const div = document.createElement('div');
            if (cls) div.className = cls;
            div.innerHTML = html;
            messages.appendChild(div);
            messages.scrollTop = messages.scrollHeight;
        }

        function render(msg) {
            if (msg.type === 'system') line(msg.text, 'system');
            else line('<strong>' + msg.name + ':</strong> ' + msg.text);
        }

        ws.onmessage = function(frame) {
            const env = JSON.parse(frame.data);
            if (env.event === 'history') env.data.forEach(render);
            else if (env.event === 'chat:message' || env.event === 'system') render(env.data);
            else if (env.event === 'user_count') count.textContent = env.data + ' online';
            else if (env.event === 'typing') line(env.data.name + ' is typing…', 'typing');
        };

        function join() {
            messages.innerHTML = '';
            emit('join', {
                room: document.getElementById('room').value,
                name: document.getElementById('name').value
            });
        }

        function send() {
            if (!text.value) return;
            emit('chat:message', {text: text.value});
            text.value = '';
        }

        text.addEventListener('input', function() { emit('typing', {}); });
        text.addEventListener('keypress', function(e) { if (e.key === 'Enter') send(); });
        ws.onopen = join;
    </script>
</body>
</html>`
