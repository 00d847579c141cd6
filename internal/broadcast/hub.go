package broadcast

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// client wraps one WebSocket connection with its own send queue so a slow
// reader can't block the broadcaster's fan-out loop.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks local WebSocket subscribers per channel and fans out
// messages to them. Grounded on the teacher's hub-per-connection-set
// shape in internal/infrastructure/websocket (HotSetManager tracks
// subscriptions per venue the same way this tracks them per channel).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	log     zerolog.Logger
}

// NewHub builds an empty local fan-out hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     log.With().Str("component", "broadcast_hub").Logger(),
	}
}

// Register starts serving conn as a subscriber of channel. It owns conn's
// write loop until the connection closes; call it from the HTTP handler
// that upgraded the WebSocket.
func (h *Hub) Register(channel string, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 16)}

	h.mu.Lock()
	if h.clients[channel] == nil {
		h.clients[channel] = make(map[*client]struct{})
	}
	h.clients[channel][c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(channel, c)
}

func (h *Hub) writeLoop(channel string, c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients[channel], c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Str("channel", channel).Msg("broadcast: dropping subscriber, write failed")
			return
		}
	}
}

// BroadcastLocal delivers payload to every subscriber of channel on this
// instance. A client whose send queue is full is skipped rather than
// blocking the rest of the fan-out.
func (h *Hub) BroadcastLocal(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients[channel] {
		select {
		case c.send <- payload:
			sent++
		default:
			h.log.Warn().Str("channel", channel).Msg("broadcast: subscriber send queue full, dropping message")
		}
	}
	return sent
}

// SubscriberCount reports how many local connections are on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}
