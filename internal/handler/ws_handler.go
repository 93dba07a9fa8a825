package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
	"github.com/yourusername/cat-engine/internal/websocket"
)

// WSHandler upgrades monitoring connections onto the event hub
type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *logger.Logger
}

// NewWSHandler creates the handler. An empty allowedOrigins list, or one
// containing "*", accepts every origin.
func NewWSHandler(hub *websocket.Hub, allowedOrigins []string, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	h := &WSHandler{hub: hub, logger: log.Component("WSHandler")}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, allowAll := allowed["*"]

	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			if origin == "" || allowAll || len(allowed) == 0 {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			h.logger.Warn("Rejected WebSocket origin", "origin", origin)
			return false
		},
	}
	return h
}

// HandleConnection upgrades the request. ?session_id= narrows the stream to
// one session from the start.
// GET /ws
func (h *WSHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	client := websocket.NewClient(h.hub, conn)
	if sessionID := c.Query("session_id"); sessionID != "" {
		client.Watch(sessionID)
	}
	client.Start()
}
