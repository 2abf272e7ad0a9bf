// Package ws fans the change events of a session out to websocket clients.
// Each session with at least one client holds exactly one broker
// subscription, shared by all of its clients.
package ws

import (
	"log/slog"
	"sync"
	"time"

	"live-class-backend/internal/pubsub"

	"github.com/gorilla/websocket"
)

const (
	TypeSubscribed = "subscribed"
	TypeChange     = "change"
	TypeResync     = "resync"
	TypeView       = "view"
	TypeError      = "error"
)

const writeWait = 5 * time.Second

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Client serializes writes to one connection.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

type room struct {
	clients map[*Client]struct{}
	stop    chan struct{}
}

type Hub struct {
	broker *pubsub.Broker

	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub(broker *pubsub.Broker) *Hub {
	return &Hub{
		broker: broker,
		rooms:  make(map[string]*room),
	}
}

// AddConnection sends the subscribed frame and registers conn. The frame is
// written before conn joins the room, so it is always the first frame and
// every change committed afterwards reaches conn. On error conn is not
// registered and the caller keeps ownership of it.
func (h *Hub) AddConnection(sessionID string, conn *websocket.Conn) (*Client, error) {
	client := NewClient(conn)

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{clients: make(map[*Client]struct{}), stop: make(chan struct{})}
		go h.pump(sessionID, r, h.broker.Subscribe(sessionID))
	}
	if err := client.Send(WSMessage{Type: TypeSubscribed}); err != nil {
		if !ok {
			close(r.stop)
		}
		return nil, err
	}
	h.rooms[sessionID] = r
	r.clients[client] = struct{}{}
	slog.Info("ws: client connected", "session_id", sessionID, "total", len(r.clients))
	return client, nil
}

func (h *Hub) RemoveConnection(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[sessionID]; ok {
		h.removeLocked(sessionID, r, client)
	}
}

func (h *Hub) removeLocked(sessionID string, r *room, client *Client) {
	if _, ok := r.clients[client]; !ok {
		return
	}
	delete(r.clients, client)
	client.conn.Close()
	if len(r.clients) == 0 {
		close(r.stop)
		if h.rooms[sessionID] == r {
			delete(h.rooms, sessionID)
		}
	}
	slog.Info("ws: client disconnected", "session_id", sessionID)
}

// Broadcast sends msg to every client of the session. Clients that fail the
// write are dropped.
func (h *Hub) Broadcast(sessionID string, msg WSMessage) {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	h.mu.Unlock()
	if ok {
		h.broadcastRoom(sessionID, r, msg)
	}
}

// broadcastRoom sends only to the clients of r. A room that was released
// and replaced under the same session id has no clients left, so a pump that
// outlives its room delivers nothing.
func (h *Hub) broadcastRoom(sessionID string, r *room, msg WSMessage) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			slog.Warn("ws: write error", "session_id", sessionID, "error", err)
			h.mu.Lock()
			h.removeLocked(sessionID, r, c)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[sessionID]; ok {
		return len(r.clients)
	}
	return 0
}

// pump forwards broker events until the room empties. A subscription the
// broker closed may have missed events: the hub subscribes again and tells
// its clients to resync.
func (h *Hub) pump(sessionID string, r *room, sub *pubsub.Subscription) {
	for {
		select {
		case <-r.stop:
			h.broker.Unsubscribe(sub)
			return
		case ev, ok := <-sub.Events():
			if !ok {
				select {
				case <-r.stop:
					return
				default:
				}
				slog.Warn("ws: subscription dropped, asking clients to resync", "session_id", sessionID)
				sub = h.broker.Subscribe(sessionID)
				h.broadcastRoom(sessionID, r, WSMessage{Type: TypeResync})
				continue
			}
			h.broadcastRoom(sessionID, r, WSMessage{Type: TypeChange, Data: ev})
		}
	}
}
