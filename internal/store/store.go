// Package store provides the durable gateway for chat messages and tracks
// per-message notification state.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a message id is unknown to the store.
var ErrNotFound = errors.New("message not found")

// Message is a stored chat message. The id is assigned by the store on
// insert and never changes; Notified transitions false to true at most once.
type Message struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Notified  bool      `json:"notified"`
}

// MessageStore defines the interface for durable message persistence.
type MessageStore interface {
	// Append inserts a message with notified=false and returns its id.
	Append(ctx context.Context, author, content string) (int64, error)

	// Recent returns the most recent limit messages, oldest first.
	Recent(ctx context.Context, limit int) ([]Message, error)

	// Notified reports the current notification flag for a message.
	Notified(ctx context.Context, id int64) (bool, error)

	// SetNotified marks a message as notified. Safe to call repeatedly.
	SetNotified(ctx context.Context, id int64) error

	// ClaimNotification atomically flips notified from false to true and
	// reports whether this caller performed the transition. At most one
	// concurrent claimant for the same id observes true.
	ClaimNotification(ctx context.Context, id int64) (bool, error)

	// Close releases the underlying store connection.
	Close() error
}
