package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 30 * time.Second

	// Send pings with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send small control frames
	maxMessageSize = 512

	defaultClientBufferSize = 128
)

// Client actions
const (
	ActionWatch   = "watch"
	ActionUnwatch = "unwatch"
)

// controlMessage is what a monitor sends to narrow its stream
type controlMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// Client is a monitoring connection. With no watched sessions it receives
// every event; otherwise only events of the watched sessions.
type Client struct {
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	sendClosed atomic.Bool

	mu      sync.RWMutex
	watched map[string]struct{}

	logger *logger.Logger
}

// NewClient creates a client bound to the hub
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		ConnectionID: id,
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, defaultClientBufferSize),
		watched:      make(map[string]struct{}),
		logger:       hub.logger.With("conn_id", id),
	}
}

// Watch narrows the stream to the given session (additive)
func (c *Client) Watch(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	c.watched[sessionID] = struct{}{}
	c.mu.Unlock()
}

// Unwatch removes a session from the filter
func (c *Client) Unwatch(sessionID string) {
	c.mu.Lock()
	delete(c.watched, sessionID)
	c.mu.Unlock()
}

// Wants reports whether an event of the session should be delivered
func (c *Client) Wants(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.watched) == 0 {
		return true
	}
	_, ok := c.watched[sessionID]
	return ok
}

// Start registers the client and launches its pumps
func (c *Client) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// CloseSend closes the send channel once
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		c.handleControl(data)
	}
}

func (c *Client) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("Ignoring malformed control message", "error", err)
		return
	}
	switch msg.Action {
	case ActionWatch:
		c.Watch(msg.SessionID)
	case ActionUnwatch:
		c.Unwatch(msg.SessionID)
	default:
		c.logger.Debug("Unknown control action", "action", msg.Action)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
