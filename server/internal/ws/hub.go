package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitalsmon/vitalsmon/server/internal/alerts"
	"github.com/vitalsmon/vitalsmon/server/internal/api"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Origins are not checked; the API key middleware guards the endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionParam is the query parameter that narrows a stream to one session.
const SessionParam = "session"

// Message is the JSON envelope sent to clients on every broadcast.
type Message struct {
	Event   string               `json:"event"`
	Seq     uint64               `json:"seq"`
	Session string               `json:"session,omitempty"`
	Data    api.SnapshotResponse `json:"data"`
}

// SnapshotFunc builds the payload for one broadcast.
type SnapshotFunc func() api.SnapshotResponse

// Hub manages WebSocket client connections and pushes the dashboard snapshot
// to all of them every interval, or sooner when Notify is called.
type Hub struct {
	build    SnapshotFunc
	interval time.Duration
	notify   chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
	seq     uint64
}

// client represents one connected WebSocket client. A non-empty session
// restricts the sessions and alerts it receives to that id.
type client struct {
	conn    *websocket.Conn
	send    chan []byte
	session string
}

// New creates a Hub that broadcasts build() every interval.
func New(build SnapshotFunc, interval time.Duration) *Hub {
	return &Hub{
		build:    build,
		interval: interval,
		notify:   make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Run starts the broadcast loop. Run blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		case <-h.notify:
			h.broadcast()
			t.Reset(h.interval)
		}
	}
}

// Notify requests an immediate broadcast. Calls made while one is already
// pending are coalesced.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the current snapshot immediately on connect, then streams
// broadcasts. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, sendBufSize),
		session: r.URL.Query().Get(SessionParam),
	}
	h.register(c)
	defer h.unregister(c)
	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "session", c.session, "clients", h.Count())

	if data, err := encode(h.nextSeq(), c.session, h.build()); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast() {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	snap := h.build()
	seq := h.nextSeq()

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send. One encoding per distinct filter.
	encoded := make(map[string][]byte)
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		data, ok := encoded[c.session]
		if !ok {
			var err error
			if data, err = encode(seq, c.session, snap); err != nil {
				slog.Error("ws: encode snapshot", "session", c.session, "err", err)
				continue
			}
			encoded[c.session] = data
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "session", c.session)
		h.unregister(c)
	}
}

func (h *Hub) nextSeq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	return h.seq
}

func encode(seq uint64, sessionID string, snap api.SnapshotResponse) ([]byte, error) {
	if sessionID != "" {
		snap = filter(snap, sessionID)
	}
	return json.Marshal(Message{Event: "snapshot", Seq: seq, Session: sessionID, Data: snap})
}

// filter narrows snap to one session. Health stays global so a single-page
// view can still show the fleet badge.
func filter(snap api.SnapshotResponse, sessionID string) api.SnapshotResponse {
	sessions := make([]api.SessionResponse, 0, 1)
	for _, s := range snap.Sessions {
		if s.ID == sessionID {
			sessions = append(sessions, s)
		}
	}
	active := make([]*alerts.Alert, 0)
	for _, a := range snap.Alerts {
		if a.SessionID == sessionID {
			active = append(active, a)
		}
	}
	snap.Sessions = sessions
	snap.Alerts = active
	return snap
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames to process control messages (pong, close) and to
// detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
