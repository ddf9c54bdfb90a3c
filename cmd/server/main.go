package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"

	"github.com/tsepanx/rss-tg-bot/internal/di"
	feedService "github.com/tsepanx/rss-tg-bot/internal/modules/feed/service"
	"github.com/tsepanx/rss-tg-bot/internal/shared/config"
	httpServer "github.com/tsepanx/rss-tg-bot/internal/transport/http"
)

func main() {
	// Setup structured logging with multiple handlers using slog-multi
	// Fanout sends logs to multiple handlers simultaneously
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(multiHandler)
	slog.SetDefault(logger)

	// Setup dependency injection
	injector, err := di.Setup()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	// Get services from DI container
	cfg := do.MustInvoke[*config.Config](injector)
	engine := do.MustInvoke[*feedService.Service](injector)
	server := do.MustInvoke[*httpServer.Server](injector)
	b := do.MustInvoke[*bot.Bot](injector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the periodic dispatcher
	engine.Start()

	// Start the digest HTTP server
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Failed to start digest server", "error", err)
			os.Exit(1)
		}
	}()

	// Start long polling for bot updates
	go b.Start(ctx)

	slog.Info("Bot started", "port", cfg.HTTPPort, "update_interval", cfg.UpdateInterval)
	slog.Info("Press Ctrl+C to stop")

	<-ctx.Done()
	slog.Info("Shutting down...")
}
