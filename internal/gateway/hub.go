package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/valet/internal/logging"
)

// notification is the wire shape pushed over websocket.
type notification struct {
	SessionID string    `json:"sessionId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans notifications out to connected websocket clients, keyed by
// session. It is the out-of-band delivery channel; history polling works
// whether or not anyone is connected.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	log     *logging.Logger
}

type wsClient struct {
	sessionID string
	conn      *websocket.Conn
	send      chan notification
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		log:     log.Sub("hub"),
	}
}

// Push delivers text to every client subscribed to the session. A slow
// client's backlog overflowing drops it rather than blocking the caller.
func (h *Hub) Push(sessionID, text string) {
	n := notification{SessionID: sessionID, Text: text, Timestamp: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.sessionID != sessionID {
			continue
		}
		select {
		case c.send <- n:
		default:
			h.log.Warn().Str("session", sessionID).Msg("dropping slow websocket client")
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// writeLoop drains the client's queue onto the socket until the queue
// closes or a write fails.
func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for n := range c.send {
		if err := c.conn.WriteJSON(n); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; it exists to notice the peer closing.
func (c *wsClient) readLoop(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
