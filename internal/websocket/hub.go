// Package websocket streams engine events to monitoring clients.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// outbound is one event ready for delivery
type outbound struct {
	sessionID string
	data      []byte
}

// Hub fans bus events out to the connected clients. A client whose buffer is
// full is disconnected rather than slowing the others down.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	broadcast chan outbound

	delivered atomic.Int64
	dropped   atomic.Int64

	logger *logger.Logger
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan outbound, 256),
		logger:    log.Component("WebSocketHub"),
	}
}

// Register adds a client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Client connected", "conn_id", c.ConnectionID, "clients", total)
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.CloseSend()
		h.logger.Info("Client disconnected", "conn_id", c.ConnectionID, "clients", total)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Metrics returns delivery counters
func (h *Hub) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"clients":   h.ClientCount(),
		"delivered": h.delivered.Load(),
		"dropped":   h.dropped.Load(),
	}
}

// Consume reads bus messages until the channel closes or ctx is done.
// Every message is acknowledged.
func (h *Hub) Consume(ctx context.Context, messages <-chan *message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			out := outbound{sessionID: msg.Metadata.Get("session_id"), data: msg.Payload}
			msg.Ack()
			select {
			case h.broadcast <- out:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Run delivers queued events until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case out := <-h.broadcast:
			h.deliver(out)
		}
	}
}

func (h *Hub) deliver(out outbound) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.Wants(out.sessionID) {
			continue
		}
		select {
		case c.send <- out.data:
			h.delivered.Add(1)
		default:
			h.dropped.Add(1)
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Client buffer full, disconnecting", "conn_id", c.ConnectionID)
		h.Unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.CloseSend()
	}
}
