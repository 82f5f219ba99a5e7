// Package webhookapp собирает HTTP-процесс приёма платёжных событий.
package webhookapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
	"github.com/Moshfiqmoon/Championyourpicks/internal/migrations"
	"github.com/Moshfiqmoon/Championyourpicks/internal/paymentprovider"
	"github.com/Moshfiqmoon/Championyourpicks/internal/services/entitlement"
	paymentservice "github.com/Moshfiqmoon/Championyourpicks/internal/services/payment"
	"github.com/Moshfiqmoon/Championyourpicks/internal/storage/repository"
)

// App HTTP-процесс приёма webhook-событий платёжного шлюза.
type App struct {
	server *http.Server
	log    *slog.Logger
	db     *repository.Storage
}

// New собирает процесс из конфигурации.
func New(_ context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "webhookapp.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gateway := paymentprovider.NewClient(cfg.APIKey, cfg.APIURL, cfg.Stripe.Timeout)
	entitlements := entitlement.New(db, log, cfg.StackingPolicy, nil)
	payments := paymentservice.New(db, entitlements, gateway, log, cfg.Plans, "", "")

	router := chi.NewRouter()
	RegisterRoutes(router, log, payments, db, cfg.WebhookSecret)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{server: srv, log: log, db: db}, nil
}

// Run запускает сервер и блокируется до отмены контекста или ошибки.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("webhook server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.log.Info("shutting down webhook server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		return err
	}
}
