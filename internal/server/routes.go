package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes configures and returns the application router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HandleIndex)
	r.Head("/", h.HandleProbe)
	r.Get("/health", h.HandleHealth)
	r.Head("/health", h.HandleProbe)
	r.Get("/ws", h.HandleWS)
	r.Post("/subscribe", h.HandleSubscribe)
	r.Delete("/subscribe", h.HandleUnsubscribe)
	r.Get("/vapid-public-key", h.HandleVAPIDPublicKey)

	return r
}
