package push

import (
	"context"

	"pushchat/internal/store"
)

// Coordinator decides whether a notification still needs to fire for a
// stored message. The durable notified flag is the single source of truth:
// the store-side conditional update yields exactly one winner, so the
// check and the flag transition cannot race across concurrent connections.
type Coordinator struct {
	store store.MessageStore
}

// NewCoordinator creates a coordinator backed by the given store.
func NewCoordinator(s store.MessageStore) *Coordinator {
	return &Coordinator{store: s}
}

// Claim authorizes at most one notification dispatch for the message id.
// Only the caller that receives true may dispatch.
func (c *Coordinator) Claim(ctx context.Context, id int64) (bool, error) {
	return c.store.ClaimNotification(ctx, id)
}
