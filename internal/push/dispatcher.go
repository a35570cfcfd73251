// Package push dispatches web push notifications for newly stored messages
// and coordinates their at-most-once delivery.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/imjasonh/webpush"

	"pushchat/internal/subs"
)

// maxBodyRunes caps the notification body; longer content is truncated with
// a marker appended.
const maxBodyRunes = 80

// Dispatcher fans a notification out to every registered subscription.
// Subscriptions whose endpoint reports a permanent failure are pruned from
// the registry; any other delivery error leaves the entry in place so the
// next message retries naturally.
type Dispatcher struct {
	client   *webpush.Client
	registry *subs.Registry
	log      *slog.Logger
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher delivering through the given client.
func NewDispatcher(client *webpush.Client, registry *subs.Registry, log *slog.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		client:   client,
		registry: registry,
		log:      log,
		timeout:  timeout,
	}
}

// NotifyAll sends one notification for the message to every subscription in
// the registry. Failures are isolated per subscription.
func (d *Dispatcher) NotifyAll(ctx context.Context, author, content string) {
	targets := d.registry.Snapshot()
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": "New message",
		"body":  author + ": " + truncate(content),
	})
	if err != nil {
		d.log.Error("building notification payload", "err", err)
		return
	}

	for _, sub := range targets {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.client.Send(sendCtx, sub, payload, &webpush.Options{
			TTL:     3600,
			Urgency: "normal",
		})
		cancel()
		if err == nil {
			continue
		}

		d.log.Warn("push delivery failed", "endpoint", sub.Endpoint, "err", err)
		if isGone(err) {
			d.registry.Remove(sub.Endpoint)
			d.log.Info("pruned expired subscription", "endpoint", sub.Endpoint)
		}
	}
}

// isGone reports whether the delivery error signals that the endpoint will
// never accept pushes again (410 Gone class responses).
func isGone(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "410") || strings.Contains(err.Error(), "Gone"))
}

func truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxBodyRunes {
		return content
	}
	return string(runes[:maxBodyRunes]) + "..."
}
