package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"playchess/pkg/gamedto"
)

const writeTimeout = 10 * time.Second

// Conn wraps one accepted websocket. Writes from the read loop, the clock
// engine and pool callbacks interleave, so Send serializes on a mutex.
type Conn struct {
	ws     *websocket.Conn
	userID string

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newConn(ws *websocket.Conn, userID string) *Conn {
	return &Conn{ws: ws, userID: userID}
}

// UserID returns the authenticated identity bound at the handshake.
func (c *Conn) UserID() string { return c.userID }

// Send writes one event frame. A failed write marks the connection closed
// so the session core stops targeting it.
func (c *Conn) Send(event string, data any) error {
	if c.closed.Load() {
		return websocket.CloseError{Code: websocket.StatusGoingAway, Reason: "connection closed"}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.ws, gamedto.Frame{Event: event, Data: data}); err != nil {
		c.closed.Store(true)
		return err
	}
	return nil
}

func (c *Conn) Closed() bool { return c.closed.Load() }

func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.closed.Store(true)
	_ = c.ws.Close(code, reason)
}
