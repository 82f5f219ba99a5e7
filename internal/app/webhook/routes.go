// Package webhookapp предоставляет маршруты процесса приёма событий.
package webhookapp

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moshfiqmoon/Championyourpicks/internal/http/handlers/health"
	"github.com/Moshfiqmoon/Championyourpicks/internal/http/handlers/paymentwebhook"
	"github.com/Moshfiqmoon/Championyourpicks/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты процесса.
func RegisterRoutes(r chi.Router, log *slog.Logger, payments paymentwebhook.Service,
	pinger health.Pinger, webhookSecret string) {
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(log, 20, 40))
		r.Post("/webhook", paymentwebhook.New(log, payments, webhookSecret, nil).ServeHTTP)
	})

	r.Get("/health", health.New(log, pinger).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
