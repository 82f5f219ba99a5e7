package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	webhookapp "github.com/Moshfiqmoon/Championyourpicks/internal/app/webhook"
	"github.com/Moshfiqmoon/Championyourpicks/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting championyourpicks webhook", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := webhookapp.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize webhook server", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("webhook server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("webhook server stopped gracefully")
}
