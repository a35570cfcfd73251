package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	sendQueueSize = 256
)

// Client represents one live WebSocket connection. It owns the connection
// for the duration of its hub membership and forwards parsed inbound frames
// to the broadcast engine.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	engine  *Engine
	addr    string
	closed  bool
	limiter *tokenBucket
	log     *slog.Logger
}

// NewClient creates a client for an upgraded connection. The send channel
// is buffered so history replay and bursts of broadcasts do not block the
// hub.
func NewClient(conn *websocket.Conn, hub *Hub, engine *Engine, addr string, opts Options, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		hub:     hub,
		engine:  engine,
		addr:    addr,
		limiter: newTokenBucket(opts.RateLimitBurst, opts.RateLimitRefill),
		log:     log,
	}
}

// readPump reads inbound frames until the connection dies, then removes the
// client from the hub. Malformed frames are dropped without feedback to the
// sender; everything else is handed to the engine in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("closing connection after read loop", "addr", c.addr, "err", err)
		}
	}()

	c.setupReadDeadlines()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.log.Warn("rate limit exceeded, frame discarded", "addr", c.addr)
			continue
		}

		author, content, ok := parseFrame(frame)
		if !ok {
			continue
		}

		c.engine.HandleInbound(context.Background(), author, content)
	}
}

func (c *Client) setupReadDeadlines() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("setting read deadline", "addr", c.addr, "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("setting read deadline in pong handler", "addr", c.addr, "err", err)
		}
		return nil
	})
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size", "addr", c.addr)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", "addr", c.addr)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", "addr", c.addr)
	default:
		c.log.Warn("websocket read error", "addr", c.addr, "err", err)
	}
}

// writePump delivers queued frames and keeps the connection alive with
// pings. Each frame goes out as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("closing connection after write loop", "addr", c.addr, "err", err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("setting write deadline", "addr", c.addr, "err", err)
				return
			}
			if !ok {
				// The hub closed the channel; say goodbye.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
					c.log.Warn("writing close message", "addr", c.addr, "err", err)
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Warn("writing frame", "addr", c.addr, "err", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
