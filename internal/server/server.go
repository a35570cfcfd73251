package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Options carries the runtime knobs shared by the connection-facing pieces.
type Options struct {
	AllowedOrigins  []string
	MaxMessageSize  int64
	HistoryLimit    int
	RateLimitBurst  int
	RateLimitRefill time.Duration
}

// CreateServer creates an HTTP server for the given address and handler
// with reasonable timeout values. The timeouts do not apply to upgraded
// WebSocket connections, which manage their own deadlines.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// requests to finish or the timeout to elapse.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown", "err", err)
		return err
	}

	log.Info("http server shutdown complete")
	return nil
}
