package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/expensabot/expensa/internal/handler"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	// Provider-facing ingress
	r.Get("/webhook", h.VerifyWebhook)
	r.Post("/webhook", h.ReceiveWebhook)

	// Broker-invoked delivery endpoint
	r.Post("/worker", h.ProcessQueuedUnit)

	r.Get("/health", h.HealthCheck)

	return r
}
