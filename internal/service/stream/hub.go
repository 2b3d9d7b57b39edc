package stream

import (
	"sync"

	"CredPulse/internal/service/metrics"
	applogger "CredPulse/pkg/logger"
)

const defaultBroadcastBuffer = 256

// Hub fans score events out to all connected WebSocket clients. Clients
// register and unregister through channels owned by the Run loop; Broadcast
// never blocks the caller.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}

	done     chan struct{}
	stopOnce sync.Once

	l *applogger.Logger
}

type HubOption func(*Hub)

// WithHubLogger sets the logger.
func WithHubLogger(l *applogger.Logger) HubOption {
	return func(h *Hub) { h.l = l }
}

// WithBroadcastBuffer sets the broadcast queue depth.
func WithBroadcastBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.broadcast = make(chan []byte, n)
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	metrics.Register()
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, defaultBroadcastBuffer),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set. It must be started before clients connect and
// runs until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			if h.l != nil {
				h.l.Debug("stream client connected",
					applogger.String("client_id", c.id),
					applogger.Int("clients", n))
			}
		case c := <-h.unregister:
			h.drop(c)
		case payload := <-h.broadcast:
			// Send under RLock, collect the clients whose buffers are
			// full, and drop them after the lock is released.
			var stale []*Client
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					stale = append(stale, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range stale {
				if h.l != nil {
					h.l.Warn("stream client send buffer full, dropping",
						applogger.String("client_id", c.id))
				}
				h.drop(c)
			}
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop terminates the Run loop and disconnects every client. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a payload for delivery to every connected client.
// When the queue is full the payload is dropped so slow delivery never
// backs up into the producer.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		if h.l != nil {
			h.l.Warn("stream broadcast queue full, dropping")
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.WSConnections.Dec()
	if h.l != nil {
		h.l.Debug("stream client disconnected",
			applogger.String("client_id", c.id),
			applogger.Int("clients", n))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()
}

// forget is the client-side unregister path. It must not block once the
// hub has stopped, so it races the done channel.
func (h *Hub) forget(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
