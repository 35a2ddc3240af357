package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/itsmeEn/New-MediSync-sub001/internal/middleware"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/logger"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/messaging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans notification events out to connected recipients. Events
// arrive over the broker so every API instance sees every emission.
type Hub struct {
	broker messaging.Broker
	logger *logger.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
}

func NewHub(broker messaging.Broker, log *logger.Logger) *Hub {
	return &Hub{
		broker:  broker,
		logger:  log,
		clients: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Run consumes the transport channel until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	msgs, err := h.broker.Subscribe(ctx, notification.TransportChannel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			var event notification.Event
			if err := json.Unmarshal(raw, &event); err != nil {
				h.logger.Error(err, "failed to decode notification event")
				continue
			}
			h.deliver(&event, raw)
		}
	}
}

func (h *Hub) deliver(event *notification.Event, raw []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.RecipientID] {
		select {
		case c.send <- raw:
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	close(c.send)
}

// Serve upgrades the request and streams the principal's notifications.
func (h *Hub) Serve(c *gin.Context) {
	principal := middleware.Principal(c)
	if principal == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "code": "ERR_VALIDATION"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(err, "websocket upgrade failed")
		return
	}

	cl := &client{userID: principal.UserID, conn: conn, send: make(chan []byte, 32)}
	h.register(cl)

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
