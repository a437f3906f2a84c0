/*
Package signaling contains the core logic of the relay: the connection
registry, message routing, and presence broadcasting.

This file defines the Client struct, representing one live WebSocket
connection. It manages the connection's read/write loops, heartbeats,
and its non-blocking outbound queue.
*/
package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sigrelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384

	// sendQueueSize is the capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

// Client represents one live duplex channel to a connected peer.
//
// Identity fields (id, username) are zero until the join handshake
// completes; both are written and read only under the hub's mutex.
type Client struct {
	// the hub this connection reports to.
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel queuing frames waiting to be sent to the peer.
	send chan []byte

	// mu guards closed and the send channel against concurrent close.
	mu sync.Mutex

	// closed is true once the outbound queue is shut; further sends are skipped.
	closed bool

	// identity minted at join time. Empty for connections that never joined.
	id string

	// display name supplied at join time.
	username string

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client wrapping an upgraded WebSocket connection.
func NewClient(hub *Hub, wsConn *websocket.Conn) *Client {
	remote := "unknown"
	if wsConn != nil {
		remote = wsConn.RemoteAddr().String()
	}

	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("remote_addr", remote).
		Logger()

	return &Client{
		hub:    hub,
		conn:   wsConn,
		send:   make(chan []byte, sendQueueSize),
		logger: clientLogger,
	}
}

// ReadPump reads frames from the WebSocket connection and hands them to
// the hub. It maintains the pong deadline and performs disconnect
// cleanup when the connection drops, whether or not a join ever happened.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.closeSendQueue()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close after read loop")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			break
		}

		c.hub.Dispatch(c, frame)
	}
}

// WritePump drains the outbound queue to the WebSocket connection and
// sends periodic Ping frames to keep the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close after write loop")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				// Queue closed: say goodbye and stop.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

// trySend queues a frame without blocking. It reports false when the
// connection is closed or the queue is full; a slow or dead peer must
// never stall routing to other peers.
func (c *Client) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame")
		return false
	}
}

// closeSendQueue shuts the outbound queue exactly once. Subsequent
// trySend calls become silent no-ops.
func (c *Client) closeSendQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// CloseWithReason writes a close frame with the given code and shuts
// the outbound queue. Used during server shutdown for normal closure.
// WriteControl is safe concurrently with the write loop.
func (c *Client) CloseWithReason(code int, reason string) {
	closeMessage := websocket.FormatCloseMessage(code, reason)

	if err := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Int("close_code", code).Msg("Failed to write close frame")
	}

	c.closeSendQueue()
}
