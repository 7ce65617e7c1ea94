package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairwire/internal/relay"
)

const sendBufferSize = 64

// client wraps one websocket connection behind the relay.Conn
// interface. All frames leave through a single writer goroutine fed by
// a buffered channel; a full buffer or a write error closes the
// connection.
type client struct {
	ws     *websocket.Conn
	send   chan []byte
	logger zerolog.Logger
	once   sync.Once
	done   chan struct{}
}

func newClient(ws *websocket.Conn, logger zerolog.Logger) *client {
	return &client{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Send encodes and queues one outbound frame. It never blocks: a slow
// consumer that fills the buffer is closed instead of stalling the
// relay.
func (c *client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.close()
		return errors.New("send buffer full")
	}
}

// IsOpen reports whether the connection can still accept frames.
func (c *client) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// close is idempotent and safe from any goroutine.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close websocket")
		}
	})
}

// writePump drains the send channel onto the wire until the connection
// closes or a write fails.
func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				c.close()
				return
			}
		}
	}
}

// keepalive emits a protocol-level ping on a fixed interval for as
// long as the connection stays open. The ticker dies with the
// connection, however the close was triggered.
func (c *client) keepalive(clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Send(relay.PingMessage()); err != nil {
				return
			}
		}
	}
}
