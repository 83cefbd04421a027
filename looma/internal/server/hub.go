package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/looma/internal/sink"
)

// clientBuffer is the per-client backlog; a client that falls further
// behind is disconnected.
const clientBuffer = 16

const writeTimeout = 5 * time.Second

// Hub is a sink that streams updates and theme events to websocket
// clients as JSON envelopes.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	out  chan []byte
	once sync.Once
}

func (c *client) close() { c.once.Do(func() { close(c.out) }) }

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[*client]struct{})}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Send(_ context.Context, u indexer.Update) error {
	return h.broadcast("update", u)
}

func (h *Hub) SendTheme(_ context.Context, t sink.Theme) error {
	return h.broadcast("theme", t)
}

// Close disconnects every client. Further sends are dropped.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	return nil
}

func (h *Hub) broadcast(typ string, data any) error {
	msg, err := json.Marshal(sink.Envelope(typ, data))
	if err != nil {
		return fmt.Errorf("hub: marshal: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- msg:
		default:
			h.logger.Warn("hub: client too slow, disconnecting")
			c.close()
			delete(h.clients, c)
		}
	}
	return nil
}

func (h *Hub) register() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{out: make(chan []byte, clientBuffer)}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// ServeHTTP upgrades to a websocket and streams events until the client
// goes away, the hub closes or the client falls behind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, ok := h.register()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.unregister(c)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		h.logger.Debug("hub: accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("hub: client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.out:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug("hub: write failed", "error", err)
				return
			}
		}
	}
}
