package store

import (
	"context"
	"sync"
	"time"
)

// Memory implements MessageStore in process memory for testing and
// development. Messages do not survive a restart.
type Memory struct {
	mu       sync.RWMutex
	messages []Message
	nextID   int64
}

// NewMemory creates a new in-memory message store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Append inserts a message with notified=false and returns its id.
func (m *Memory) Append(_ context.Context, author, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.messages = append(m.messages, Message{
		ID:        id,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now(),
		Notified:  false,
	})
	return id, nil
}

// Recent returns the most recent limit messages, oldest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.messages) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	out := make([]Message, len(m.messages)-start)
	copy(out, m.messages[start:])
	return out, nil
}

// Notified reports the current notification flag for a message.
func (m *Memory) Notified(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			return m.messages[i].Notified, nil
		}
	}
	return false, ErrNotFound
}

// SetNotified marks a message as notified. Safe to call repeatedly.
func (m *Memory) SetNotified(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Notified = true
			return nil
		}
	}
	return ErrNotFound
}

// ClaimNotification flips notified from false to true under the store lock,
// so exactly one concurrent claimant wins.
func (m *Memory) ClaimNotification(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			if m.messages[i].Notified {
				return false, nil
			}
			m.messages[i].Notified = true
			return true, nil
		}
	}
	return false, ErrNotFound
}

// Close is a no-op for in-memory storage.
func (m *Memory) Close() error {
	return nil
}
