// Package realtime pushes live events to dashboard websocket clients.
// Events are scoped per organization; a client only ever sees its own
// org's traffic.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"receptionist-platform/internal/auth"
	"receptionist-platform/pkg/logger"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser origin checks are enforced by the auth token, not
		// the Origin header.
		return true
	},
}

// Event is the wire frame sent to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	orgID string
}

// Hub fans events out to connected clients grouped by org.
type Hub struct {
	mu         sync.Mutex
	rooms      map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run owns room membership. Call it on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[c.orgID]
			if !ok {
				room = make(map[*client]struct{})
				h.rooms[c.orgID] = room
			}
			room[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[c.orgID]; ok {
				if _, member := room[c]; member {
					delete(room, c)
					close(c.send)
					if len(room) == 0 {
						delete(h.rooms, c.orgID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Close stops Run. Connected clients are dropped by their own pumps.
func (h *Hub) Close() { close(h.done) }

// Publish delivers an event to every client of the org. Slow clients
// are skipped rather than blocking the publisher.
func (h *Hub) Publish(orgID, eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[orgID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ServeWS upgrades the request and attaches the client to its org's
// room. Identity must already be on the request context.
func (h *Hub) ServeWS(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromGin(c).Error("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{hub: h, conn: conn, send: make(chan []byte, 64), orgID: orgID}
	select {
	case h.register <- cl:
	case <-h.done:
		// Hub already shut down; drop the connection instead of
		// parking the handler on a channel nobody drains.
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// Clients never send application data; reads only service
		// close frames and control messages.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
