package api

import (
	"sync"
	"time"

	"github.com/seenimoa/fxstream/internal/metrics"
	"github.com/seenimoa/fxstream/pkg/models"
)

// Hub manages live websocket connections keyed by connection id.
// Delivery to an id that has disconnected is a no-op, which is what
// lets in-flight results be discarded after disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[models.ConnectionID]*Client
}

// Client represents a single websocket connection's outbound queue.
type Client struct {
	id   models.ConnectionID
	send chan Event

	mu     sync.Mutex
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[models.ConnectionID]*Client),
	}
}

func newClient(id models.ConnectionID) *Client {
	return &Client{
		id:   id,
		send: make(chan Event, 256),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	metrics.ConnectedClients.Inc()
}

// Unregister removes a client and closes its outbound queue. Safe to
// call for an id that was already removed.
func (h *Hub) Unregister(id models.ConnectionID) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		client.shutdown()
		metrics.ConnectedClients.Dec()
	}
}

// Deliver enqueues an event for one connection. Returns false when the
// connection is unknown, closed, or its queue is full (best-effort,
// most-recent-value semantics — a slow client just misses events).
func (h *Hub) Deliver(id models.ConnectionID, ev Event) bool {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.deliver(ev)
}

// DeliverRate adapts a broadcast quote into a rate-update event. It
// implements broadcast.Sink.
func (h *Hub) DeliverRate(id models.ConnectionID, quote *models.RateQuote) bool {
	return h.Deliver(id, Event{
		Type: EvRateUpdate,
		Data: RateUpdate{
			From:      quote.Pair.From,
			To:        quote.Pair.To,
			Rate:      quote.Rate,
			Date:      quote.AsOfDate.UTC().Format("2006-01-02"),
			Timestamp: quote.ObservedAt.UTC().Format(time.RFC3339),
		},
	})
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}
