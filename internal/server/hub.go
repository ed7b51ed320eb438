// Package server coordinates client registration, inbound frame dispatch, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Tyrowin/gridiron-relay/internal/session"
)

// Hub owns every live websocket client and is the transport of the session
// coordinator. Registration, unregistration and inbound frames are handled on
// the single Run goroutine, so coordinator calls arrive in arrival order.
type Hub struct {
	clients     map[string]*Client
	register    chan *Client
	unregister  chan *Client
	inbound     chan inboundFrame
	coordinator *session.Coordinator
	evict       []*Client
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	logger      *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger for the hub, its clients and its coordinator.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a Hub with its own session coordinator. Call Run before
// registering clients.
func NewHub(opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.coordinator = session.NewCoordinator(h, session.WithLogger(h.logger))
	return h
}

// Coordinator returns the session coordinator fed by this hub.
func (h *Hub) Coordinator() *session.Coordinator {
	return h.coordinator
}

// Register hands a client to the run loop, which starts its pumps. It returns
// false once the hub is shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) deliver(frame inboundFrame) bool {
	select {
	case h.inbound <- frame:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Send implements session.Transport. It never blocks: a client whose buffer
// is full is queued for eviction and the frame is dropped.
func (h *Hub) Send(connID string, frame []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[connID]
	if !ok || client.closed {
		return
	}

	select {
	case client.send <- frame:
	default:
		if !slices.Contains(h.evict, client) {
			h.evict = append(h.evict, client)
		}
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "disconnected")

		case frame := <-h.inbound:
			h.dispatch(frame)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	if client == nil {
		h.logger.Warn("received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	client.logger.Info("client registered", "clients", clientCount)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) dispatch(frame inboundFrame) {
	h.mutex.RLock()
	current, live := h.clients[frame.client.id]
	h.mutex.RUnlock()
	if !live || current != frame.client {
		return
	}

	h.coordinator.Dispatch(frame.client.id, frame.payload)
	h.evictSlowClients()
}

func (h *Hub) evictSlowClients() {
	h.mutex.Lock()
	slow := h.evict
	h.evict = nil
	h.mutex.Unlock()

	for _, client := range slow {
		h.removeClient(client, "send buffer full")
	}
}

// removeClient forgets the client, closes its send channel so the write pump
// says goodbye, and tells the coordinator the connection is gone.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)
	h.coordinator.Disconnect(client.id)
	client.logger.Info("client unregistered", "reason", reason, "clients", clientCount)
}

// shutdownClients closes every active client connection.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		client.closed = true
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.evict = nil
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		h.coordinator.Disconnect(client.id)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.logger.Warn("closing client connection", "error", err)
			}
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Stats reports live rooms, seated players and open connections.
func (h *Hub) Stats() (rooms, players, connections int) {
	h.mutex.RLock()
	connections = len(h.clients)
	h.mutex.RUnlock()

	rooms, players = h.coordinator.Stats()
	return rooms, players, connections
}

// Shutdown stops the run loop and waits for client goroutines to finish, or
// for the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()

	deadline := time.After(timeout)

	select {
	case <-h.done:
	case <-deadline:
		h.logger.Warn("hub run loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-deadline:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
