package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"courier/pkg/types"
)

// Connection wraps one live WebSocket session. All writes go through a
// single writer goroutine fed by a buffered channel; gorilla connections do
// not tolerate concurrent writers. The owning identity is fixed at
// construction because a Connection only ever exists after the handshake
// token was verified.
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration

	userID string
	role   string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection for the given
// identity and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, identity *types.Identity, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		userID:       identity.ID,
		role:         identity.Role,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer. It exits when the context is cancelled or
// a write fails, at which point the connection is no longer usable.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it as one text frame. Frames are delivered
// in the order WriteJSON was called.
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	}
}

// IsOpen reports whether the connection can still accept writes.
func (c *Connection) IsOpen() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// Close tears down the transport and stops the writer goroutine. Idempotent;
// close and error paths may both reach here for the same connection.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// UserID returns the ID of the user this connection authenticated as.
func (c *Connection) UserID() string { return c.userID }

// Role returns the role claim from the handshake token.
func (c *Connection) Role() string { return c.role }
