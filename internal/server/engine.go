package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"pushchat/internal/store"
)

// Notifier dispatches one notification to every registered subscription.
type Notifier interface {
	NotifyAll(ctx context.Context, author, content string)
}

// Claimer authorizes at most one notification per stored message id.
type Claimer interface {
	Claim(ctx context.Context, id int64) (bool, error)
}

// Engine wires the persistence gateway, the dedup coordinator, the push
// dispatcher, and the hub together. No fault in any of them aborts the
// real-time path: a failed call degrades to "skip this one operation".
type Engine struct {
	store        store.MessageStore
	claimer      Claimer
	notifier     Notifier
	hub          *Hub
	log          *slog.Logger
	historyLimit int
	storeTimeout time.Duration
}

// NewEngine creates the broadcast engine.
func NewEngine(st store.MessageStore, claimer Claimer, notifier Notifier, hub *Hub, log *slog.Logger, historyLimit int, storeTimeout time.Duration) *Engine {
	return &Engine{
		store:        st,
		claimer:      claimer,
		notifier:     notifier,
		hub:          hub,
		log:          log,
		historyLimit: historyLimit,
		storeTimeout: storeTimeout,
	}
}

// Replay sends the recent message backlog, oldest first, to a newly joined
// client. Replay failures are logged and skipped; the connection stays in
// the live set either way.
func (e *Engine) Replay(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	messages, err := e.store.Recent(ctx, e.historyLimit)
	if err != nil {
		e.log.Warn("history replay skipped", "addr", c.addr, "err", err)
		return
	}

	frames := lo.Map(messages, func(m store.Message, _ int) []byte {
		return []byte(renderHistory(m.Author, m.Content))
	})
	for _, frame := range frames {
		if !e.hub.sendTo(c, frame) {
			return
		}
	}
}

// HandleInbound processes one accepted message: persist it, fire the push
// notification if this message still needs one, and broadcast the rendered
// frame to every live connection.
func (e *Engine) HandleInbound(ctx context.Context, author, content string) {
	appendCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	id, err := e.store.Append(appendCtx, author, content)
	cancel()

	if err != nil {
		// No id means no flag to manage; dispatch without dedup
		// accounting rather than dropping the notification.
		e.log.Error("persisting message failed", "author", author, "err", err)
		e.notifier.NotifyAll(ctx, author, content)
	} else {
		claimCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		won, err := e.claimer.Claim(claimCtx, id)
		cancel()

		switch {
		case err != nil:
			e.log.Error("notification claim failed", "id", id, "err", err)
		case won:
			e.notifier.NotifyAll(ctx, author, content)
		}
	}

	e.hub.Broadcast([]byte(renderMessage(author, content)))
}
