// Package subs maintains the registry of web push subscriptions targeted by
// notification fan-out. Entries are unique by endpoint and live only for the
// lifetime of the process.
package subs

import (
	"sync"

	"github.com/imjasonh/webpush"
)

// Registry is a concurrency-safe set of push subscriptions keyed by endpoint.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*webpush.Subscription
}

// NewRegistry creates an empty subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]*webpush.Subscription),
	}
}

// Add registers a subscription. It reports false when a subscription with
// the same endpoint is already present; the existing entry is kept.
func (r *Registry) Add(sub *webpush.Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.Endpoint]; exists {
		return false
	}
	r.subs[sub.Endpoint] = copySubscription(sub)
	return true
}

// Remove deletes the subscription with the given endpoint. It reports
// whether an entry was removed; removing an absent endpoint is a no-op.
func (r *Registry) Remove(endpoint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[endpoint]; !exists {
		return false
	}
	delete(r.subs, endpoint)
	return true
}

// Snapshot returns a stable copy of the current membership. Mutations made
// after the call do not affect the returned slice.
func (r *Registry) Snapshot() []*webpush.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*webpush.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, copySubscription(sub))
	}
	return out
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func copySubscription(sub *webpush.Subscription) *webpush.Subscription {
	return &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}
}
