// internal/handler/websocket_handler.go
package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"board-service/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBacklog  = 64
	maxMessageSize = 512
)

// WebSocketHandler streams device change events to connected clients. It is
// the Callback sink for the monitor loop: every connect/disconnect delta is
// fanned out to all subscribers.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]chan model.ChangeEvent
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement belongs to the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With(zap.String("component", "change-feed")),
		clients: make(map[string]chan model.ChangeEvent),
	}
}

// Broadcast fans an event out to every connected client. A client whose
// backlog is full misses the event rather than stalling the monitor loop.
func (h *WebSocketHandler) Broadcast(event model.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn("Slow change-feed client, dropping event",
				zap.String("client_id", id),
				zap.String("kind", string(event.Kind)),
			)
		}
	}
}

// ClientCount returns the number of connected feed clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleChangeFeed upgrades the connection and streams change events
// @Summary Device change feed
// @Description WebSocket stream of connect/disconnect events
// @Tags Events
// @Router /ws/events [get]
func (h *WebSocketHandler) HandleChangeFeed(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	events := make(chan model.ChangeEvent, clientBacklog)

	h.mu.Lock()
	h.clients[clientID] = events
	h.mu.Unlock()

	h.logger.Info("Change-feed client connected", zap.String("client_id", clientID))

	go h.writePump(clientID, conn, events)
	go h.readPump(clientID, conn)
}

func (h *WebSocketHandler) unregister(clientID string) {
	h.mu.Lock()
	if ch, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		close(ch)
	}
	h.mu.Unlock()
}

// readPump drains client frames so pings and close frames are processed.
func (h *WebSocketHandler) readPump(clientID string, conn *websocket.Conn) {
	defer func() {
		h.unregister(clientID)
		conn.Close()
		h.logger.Info("Change-feed client disconnected", zap.String("client_id", clientID))
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes events to the socket and keeps the connection alive.
func (h *WebSocketHandler) writePump(clientID string, conn *websocket.Conn, events <-chan model.ChangeEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Change-feed write failed",
					zap.String("client_id", clientID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
