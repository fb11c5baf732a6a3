package gateway

import (
	"sync"

	"go.uber.org/zap"

	"playchess/internal/obslog"
)

// Hub tracks which connections subscribe to which game room. It is the
// broadcast surface the session core pushes through.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

// Join subscribes a connection to a room.
func (h *Hub) Join(sessionID string, c *Conn) {
	if c == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[sessionID] = room
	}
	room[c] = struct{}{}
}

// Leave unsubscribes a connection from one room.
func (h *Hub) Leave(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// Drop removes a connection from every room it joined.
func (h *Hub) Drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
}

// CloseRoom forgets a room once its session has been settled.
func (h *Hub) CloseRoom(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, sessionID)
}

// Broadcast delivers one event to every live subscriber of a room. Dead
// connections are pruned on the way.
func (h *Hub) Broadcast(sessionID, event string, data any) {
	h.mu.RLock()
	subs := make([]*Conn, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	var dead []*Conn
	for _, c := range subs {
		if c.Closed() {
			dead = append(dead, c)
			continue
		}
		if err := c.Send(event, data); err != nil {
			obslog.L().Debug("room broadcast send failed",
				zap.String("sessionId", sessionID),
				zap.String("event", event),
				zap.String("userId", c.UserID()),
				zap.Error(err))
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.Drop(c)
	}
}
