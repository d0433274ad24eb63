// Package events streams funnel stage changes to connected boards over websockets.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imoveplus/crm/backend/funnel"
	log "gopkg.in/inconshreveable/log15.v2"
)

const ActionStageChanged = "stage_changed"

type Message struct {
	Action string       `json:"action"`
	Item   *funnel.Item `json:"item"`
}

const (
	// DefaultWriteTimeout bounds a single message write to a client.
	DefaultWriteTimeout = 10 * time.Second

	// sendBuffer is the number of messages queued per client before it is considered stalled and dropped.
	sendBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub keeps the open connections of each user. Messages are only delivered to connections of the user who owns the
// item. Each connection has its own writer goroutine so a client that stops reading never blocks a broadcast.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       log.Logger
	WriteTimeout time.Duration

	mutex   sync.Mutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger log.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:       logger,
		WriteTimeout: DefaultWriteTimeout,
		clients:      make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request and holds the connection open until the client goes away. Anything the client sends is
// discarded.
func (h *Hub) Serve(w http.ResponseWriter, req *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	h.add(userID, c)
	defer h.remove(userID, c)

	go h.write(userID, c)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// write delivers queued messages until the send channel is closed or a write fails. Closing the connection on
// failure ends the read loop in Serve, which removes the client.
func (h *Hub) write(userID string, c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.logger.Info("Dropping websocket client", "user_id", userID, "error", err)
			c.conn.Close()
			return
		}
	}
}

// Broadcast queues a stage change for every connection of userID. It never blocks: a connection whose queue is full
// is closed and dropped.
func (h *Hub) Broadcast(userID string, item *funnel.Item) {
	msg := Message{Action: ActionStageChanged, Item: item}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Info("Dropping stalled websocket client", "user_id", userID)
			h.forget(userID, c)
		}
	}
}

// ClientCount returns the number of open connections of userID.
func (h *Hub) ClientCount(userID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients[userID])
}

func (h *Hub) add(userID string, c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) remove(userID string, c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.forget(userID, c)
}

// forget must be called with h.mutex held. It is safe to call more than once for the same client.
func (h *Hub) forget(userID string, c *client) {
	if _, ok := h.clients[userID][c]; ok {
		delete(h.clients[userID], c)
		close(c.send)
		c.conn.Close()
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}
