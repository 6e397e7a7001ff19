// Package signalclient is the websocket client side of the relay protocol,
// shared by the publisher and subscriber binaries.
package signalclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// Client is one connection to the relay. Send is safe for concurrent use:
// the signaling read loop and pion's candidate callbacks both write.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the relay's signaling endpoint.
func Dial(wsURL string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial signaling: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send writes one envelope as a JSON text frame.
func (c *Client) Send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write signaling: %w", err)
	}
	return nil
}

// Read blocks for the next envelope. Frames that fail to decode are
// reported as errors; the connection stays usable.
func (c *Client) Read() (protocol.Envelope, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("read signaling: %w", err)
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return protocol.Envelope{}, err
	}
	return env, nil
}

func (c *Client) Close() {
	if err := c.conn.Close(); err != nil {
		log.Debug().Err(err).Str("module", "signalclient").Msg("close")
	}
}

// RunLoop dials the relay and invokes session for each established
// connection, reconnecting with a flat backoff until ctx is cancelled.
// Mirrors the publisher's reconnect behavior: any read error tears the
// session down and a fresh hello follows on the next connection.
func RunLoop(ctx context.Context, wsURL string, backoff time.Duration, session func(ctx context.Context, c *Client) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client, err := Dial(wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Str("module", "signalclient").Str("url", wsURL).Msg("connect failed")
		} else {
			if err := session(ctx, client); err != nil {
				log.Warn().Err(err).Str("module", "signalclient").Msg("session ended")
			}
			client.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
