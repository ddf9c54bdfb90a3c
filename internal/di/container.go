package di

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/samber/do/v2"
	"github.com/samber/oops"

	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/fetcher"
	feedService "github.com/tsepanx/rss-tg-bot/internal/modules/feed/service"
	subscriptionRepo "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/repository"
	subscriptionService "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/service"
	"github.com/tsepanx/rss-tg-bot/internal/shared/config"
	httpServer "github.com/tsepanx/rss-tg-bot/internal/transport/http"
	telegramHandler "github.com/tsepanx/rss-tg-bot/internal/transport/telegram"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Subscription Repository
	do.Provide(injector, func(i do.Injector) (subscriptionRepo.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := subscriptionRepo.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize subscription repository").Wrap(err)
		}
		return repo, nil
	})

	// Register Subscription Registry
	do.Provide(injector, func(i do.Injector) (*subscriptionService.Service, error) {
		repo := do.MustInvoke[subscriptionRepo.Repository](i)
		registry, err := subscriptionService.New(repo)
		if err != nil {
			return nil, oops.With("context", "failed to initialize subscription registry").Wrap(err)
		}
		return registry, nil
	})

	// Register Feed Fetcher
	do.Provide(injector, func(i do.Injector) (fetcher.Fetcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return fetcher.New(cfg.FetchTimeoutDuration()), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		registry := do.MustInvoke[*subscriptionService.Service](i)
		feedFetcher := do.MustInvoke[fetcher.Fetcher](i)
		return feedService.New(cfg, registry, feedFetcher), nil
	})

	// Register Telegram Handler
	do.Provide(injector, func(i do.Injector) (*telegramHandler.Handler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		registry := do.MustInvoke[*subscriptionService.Service](i)
		engine := do.MustInvoke[*feedService.Service](i)
		return telegramHandler.New(cfg, registry, engine), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		engine := do.MustInvoke[*feedService.Service](i)
		server := httpServer.New(cfg, engine)
		server.SetLogger(slog.Default())
		return server, nil
	})

	// Register Bot (needs to be initialized after handlers are ready)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		handler := do.MustInvoke[*telegramHandler.Handler](i)

		opts := []bot.Option{
			bot.WithDefaultHandler(handler.HandleUpdate),
		}

		b, err := bot.New(cfg.TelegramBotToken, opts...)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}

		// Register bot commands
		handler.RegisterCommands(b)

		// Set bot in feed service for digest delivery
		engine := do.MustInvoke[*feedService.Service](i)
		engine.SetBot(b)

		return b, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	ctx := context.Background()

	// Shutdown bot if it exists
	if b, err := do.Invoke[*bot.Bot](injector); err == nil && b != nil {
		b.Close(ctx)
	}

	// Stop the periodic dispatcher if it exists
	if engine, err := do.Invoke[*feedService.Service](injector); err == nil && engine != nil {
		engine.Stop()
	}

	return nil
}
