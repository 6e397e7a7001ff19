// Package ws is the relay's websocket transport adapter. It owns the
// gorilla connections and their read/write pumps, and hands decoded frames
// to the relay router. The registry only ever sees the Conn wrapper.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Conn wraps one websocket connection with a bounded async send queue.
// A slow reader sheds frames rather than blocking the router.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn, sendBuf int) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBuf),
	}
}

// Send implements relay.Conn.
func (c *Conn) Send(env protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return c.trySend(data)
}

func (c *Conn) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close implements relay.Conn. Idempotent.
func (c *Conn) Close(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
	log.Info().Str("module", "ws").Str("reason", reason).Msg("connection closed")
}
