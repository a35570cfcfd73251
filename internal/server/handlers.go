package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imjasonh/webpush"

	"pushchat/internal/subs"
)

// Handlers carries the dependencies of the HTTP layer.
type Handlers struct {
	hub            *Hub
	engine         *Engine
	registry       *subs.Registry
	vapidPublicKey string
	opts           Options
	log            *slog.Logger
	upgrader       websocket.Upgrader
}

// NewHandlers wires the HTTP layer to the hub, engine, and subscription
// registry.
func NewHandlers(hub *Hub, engine *Engine, registry *subs.Registry, vapidPublicKey string, opts Options, log *slog.Logger) *Handlers {
	origins := newOriginChecker(opts.AllowedOrigins)

	return &Handlers{
		hub:            hub,
		engine:         engine,
		registry:       registry,
		vapidPublicKey: vapidPublicKey,
		opts:           opts,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if origins.check(r) {
					return true
				}
				log.Warn("blocked websocket upgrade from disallowed origin", "origin", r.Header.Get("Origin"))
				return false
			},
		},
	}
}

// HandleWS upgrades the connection, registers it with the hub, and replays
// the recent backlog to the new client.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClient(conn, h.hub, h.engine, r.RemoteAddr, h.opts, h.log)
	h.hub.Register(client)
	h.engine.Replay(r.Context(), client)
}

// HandleSubscribe registers a push subscription. A repeated subscribe for
// the same endpoint leaves the existing entry untouched.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	sub, err := webpush.ParseSubscription(body)
	if err != nil {
		h.log.Warn("rejected invalid subscription", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	if h.registry.Add(sub) {
		h.log.Info("subscription added", "endpoint", sub.Endpoint)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleUnsubscribe removes a push subscription by endpoint.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	if h.registry.Remove(req.Endpoint) {
		h.log.Info("subscription removed", "endpoint", req.Endpoint)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// HandleVAPIDPublicKey returns the public key browsers need to subscribe.
func (h *Handlers) HandleVAPIDPublicKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.vapidPublicKey})
}

// HandleHealth reports server status for uptime probes.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleProbe answers HEAD probes with an empty 200.
func (h *Handlers) HandleProbe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// HandleIndex serves a minimal chat page for manual testing.
func (h *Handlers) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>PushChat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        .history { color: gray; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
    </style>
</head>
<body>
    <h1>PushChat</h1>
    <div id="messages"></div>
    <div>
        <input type="text" id="name" placeholder="Name...">
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="send()">Send</button>
    </div>
    <script>
        const messages = document.getElementById('messages');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');

        ws.onmessage = function(event) {
            const line = document.createElement('div');
            let text = event.data;
            if (text.startsWith('HISTORY:')) {
                text = text.slice('HISTORY:'.length);
                line.className = 'history';
            }
            line.innerHTML = text;
            messages.appendChild(line);
            messages.scrollTop = messages.scrollHeight;
        };

        function send() {
            const name = document.getElementById('name').value.trim();
            const text = document.getElementById('text').value.trim();
            if (name && text && ws.readyState === WebSocket.OPEN) {
                ws.send(name + '|' + text);
                document.getElementById('text').value = '';
            }
        }

        document.getElementById('text').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') send();
        });
    </script>
</body>
</html>`
