package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imjasonh/webpush"
	"github.com/imjasonh/webpush/keys"

	"pushchat/internal/config"
	"pushchat/internal/push"
	"pushchat/internal/server"
	"pushchat/internal/store"
	"pushchat/internal/subs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so that
// deferred cleanup executes before the process exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	signer, err := keys.NewFileSignerFromBase64(cfg.VAPIDPrivateKey)
	if err != nil {
		return fmt.Errorf("loading VAPID key: %w", err)
	}

	var messageStore store.MessageStore
	if cfg.SupabaseURL != "" {
		messageStore = store.NewPostgREST(cfg.SupabaseURL, cfg.SupabaseKey, cfg.StoreTimeout)
		log.Info("using supabase message store", "url", cfg.SupabaseURL)
	} else {
		messageStore, err = store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		log.Info("using sqlite message store", "path", cfg.SQLitePath)
	}
	defer messageStore.Close()

	registry := subs.NewRegistry()
	dispatcher := push.NewDispatcher(webpush.NewClient(signer, cfg.VAPIDSubject), registry, log, cfg.PushTimeout)
	coordinator := push.NewCoordinator(messageStore)

	hub := server.NewHub(log)
	engine := server.NewEngine(messageStore, coordinator, dispatcher, hub, log, cfg.HistoryLimit, cfg.StoreTimeout)
	handlers := server.NewHandlers(hub, engine, registry, signer.PublicKeyBase64(), server.Options{
		AllowedOrigins:  cfg.Origins(),
		MaxMessageSize:  cfg.MaxMessageSize,
		HistoryLimit:    cfg.HistoryLimit,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitRefill: cfg.RateLimitRefill,
	}, log)

	go hub.Run()

	srv := server.CreateServer(fmt.Sprintf(":%d", cfg.Port), handlers.Routes())

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	_ = server.ShutdownServer(srv, 10*time.Second, log)
	return hub.Shutdown(5 * time.Second)
}
