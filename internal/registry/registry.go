// Package registry tracks which live connections subscribe to which
// currency pairs. It is the single shared-mutation point of the service:
// every read and write is serialized under one mutex, so the scheduler
// always sees a consistent snapshot.
package registry

import (
	"sync"

	"github.com/seenimoa/fxstream/pkg/models"
)

// Registry maps each live connection to its set of subscribed pairs.
// Connections are referenced by opaque id only, so cleanup on disconnect
// is a pure removal-by-key operation.
type Registry struct {
	mu   sync.Mutex
	subs map[models.ConnectionID]map[models.CurrencyPair]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		subs: make(map[models.ConnectionID]map[models.CurrencyPair]struct{}),
	}
}

// Add records a subscription. Idempotent: re-adding an existing pair for
// the same connection is a no-op.
func (r *Registry) Add(conn models.ConnectionID, pair models.CurrencyPair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs, ok := r.subs[conn]
	if !ok {
		pairs = make(map[models.CurrencyPair]struct{})
		r.subs[conn] = pairs
	}
	pairs[pair] = struct{}{}
}

// Remove drops a subscription. Removing a non-existent subscription is a
// no-op, not an error.
func (r *Registry) Remove(conn models.ConnectionID, pair models.CurrencyPair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs, ok := r.subs[conn]
	if !ok {
		return
	}
	delete(pairs, pair)
	if len(pairs) == 0 {
		delete(r.subs, conn)
	}
}

// RemoveConnection drops every subscription for a connection. Safe to
// call on an already-absent connection.
func (r *Registry) RemoveConnection(conn models.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, conn)
}

// DistinctPairs returns a consistent snapshot of the pairs with at least
// one subscriber, each with its subscribing connections. Every pair
// appears at most once regardless of subscriber count; this is the
// de-duplicated view the broadcast scheduler fetches from.
func (r *Registry) DistinctPairs() map[models.CurrencyPair][]models.ConnectionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[models.CurrencyPair][]models.ConnectionID)
	for conn, pairs := range r.subs {
		for pair := range pairs {
			out[pair] = append(out[pair], conn)
		}
	}
	return out
}

// Subscriptions returns the pairs a single connection is subscribed to.
func (r *Registry) Subscriptions(conn models.ConnectionID) []models.CurrencyPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := make([]models.CurrencyPair, 0, len(r.subs[conn]))
	for pair := range r.subs[conn] {
		pairs = append(pairs, pair)
	}
	return pairs
}
