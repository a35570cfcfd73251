package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hub is the connection registry. It owns the set of live clients and
// handles registration, idempotent removal, and snapshot-based broadcast
// where one failing member never aborts delivery to the others.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
}

// NewHub creates a hub ready to manage WebSocket connections. Run must be
// started in its own goroutine before clients are registered.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Register inserts the client into the live set and starts its pumps.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes the client from the live set. Removing a client that
// is already gone is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast delivers a frame to a stable snapshot of the current
// membership and removes members whose send failed. Callers from different
// connections may interleave; failures are isolated per member.
func (h *Hub) Broadcast(frame []byte) {
	clients := h.snapshot()

	var failed []*Client
	for _, client := range clients {
		if !h.sendTo(client, frame) {
			failed = append(failed, client)
		}
	}

	h.removeFailed(failed)
}

// Run is the hub's event loop. It serializes membership changes and starts
// the pump goroutines for registered clients; it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("nil client registration skipped")
				continue
			}
			h.add(client)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	total := len(h.clients)
	h.mutex.Unlock()

	h.log.Info("client registered", "addr", client.addr, "total", total)
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	total := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	h.log.Info("client unregistered", "addr", client.addr, "total", total)
}

// sendTo attempts to queue a frame for one client. It reports false when
// the client is gone or its send buffer is full.
func (h *Hub) sendTo(client *Client, frame []byte) bool {
	// Hold the lock across the send so the channel cannot be closed by a
	// concurrent removal mid-operation.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// snapshot returns the current membership. Clients added or removed after
// the call do not affect an in-flight broadcast.
func (h *Hub) snapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) removeFailed(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channels []chan []byte
	for _, client := range failed {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			client.closed = true
			channels = append(channels, client.send)
			h.log.Warn("client dropped during broadcast", "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

func (h *Hub) closeAllConnections() {
	clients := h.snapshot()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("closing client connection", "addr", client.addr, "err", err)
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes every connection, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
