package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// conn adapts a fiber websocket connection to Socket. Writes come from the hub
// goroutine and from the read loop (pong), so they are serialized here.
type conn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *conn) Close() error {
	return c.ws.Close()
}
