package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/lo"

	"github.com/tsepanx/rss-tg-bot/internal/modules/digest"
	feedService "github.com/tsepanx/rss-tg-bot/internal/modules/feed/service"
	subscriptionDomain "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	subscriptionService "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/service"
	"github.com/tsepanx/rss-tg-bot/internal/shared/config"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

// Handler handles Telegram bot commands
type Handler struct {
	cfg      *config.Config
	registry *subscriptionService.Service
	engine   *feedService.Service
}

// New creates a new Telegram handler
func New(cfg *config.Config, registry *subscriptionService.Service, engine *feedService.Service) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		engine:   engine,
	}
}

// commandFunc is a command handler that reports failure instead of replying
// itself; the wrap middleware turns the error into the user-visible reply.
type commandFunc func(ctx context.Context, b *bot.Bot, update *models.Update) error

// RegisterCommands registers bot commands
func (h *Handler) RegisterCommands(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, h.wrap(h.handleStart))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, h.wrap(h.handleStart))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/add", bot.MatchTypePrefix, h.wrap(h.handleAdd))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/list", bot.MatchTypeExact, h.wrap(h.handleList))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/del", bot.MatchTypePrefix, h.wrap(h.handleDel))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/fetch", bot.MatchTypeExact, h.wrap(h.handleFetch))
	b.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, h.wrap(h.handleStatus))
}

// HandleUpdate is the default handler for non-command messages
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	if err := h.registry.Ensure(update.Message.Chat.ID); err != nil {
		slog.Error("Failed to ensure conversation", "conversation_id", update.Message.Chat.ID, "error", err)
	}

	h.reply(ctx, b, update.Message.Chat.ID, "Use /help to see available commands.")
}

// wrap ensures the conversation exists, checks authorization, and maps any
// handler error to a reply so a broken command never kills the dispatch loop.
func (h *Handler) wrap(fn commandFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		conversationID := update.Message.Chat.ID

		if !h.authorized(update.Message.From.ID) {
			h.reply(ctx, b, conversationID, "You are not authorized to use this bot.")
			return
		}

		if err := h.registry.Ensure(conversationID); err != nil {
			slog.Error("Failed to ensure conversation", "conversation_id", conversationID, "error", err)
		}

		if err := fn(ctx, b, update); err != nil {
			slog.Error("Command failed", "conversation_id", conversationID, "command", update.Message.Text, "error", err)
			h.reply(ctx, b, conversationID, userMessage(err))
		}
	}
}

func (h *Handler) authorized(userID int64) bool {
	if len(h.cfg.AllowedUsers) == 0 {
		return true
	}
	return lo.Contains(h.cfg.AllowedUsers, userID)
}

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) error {
	text := `Hi! I deliver updates from your RSS/Atom feeds.

Available commands:
/add <url> - Subscribe to a feed
/list - List your subscriptions
/del <index-or-url> - Remove a subscription
/fetch - Fetch new entries now
/status - Show bot status

Example:
/add https://example.com/rss.xml`

	h.reply(ctx, b, update.Message.Chat.ID, text)
	return nil
}

func (h *Handler) handleAdd(ctx context.Context, b *bot.Bot, update *models.Update) error {
	conversationID := update.Message.Chat.ID

	urls := strings.Fields(update.Message.Text)[1:]
	if len(urls) == 0 {
		h.reply(ctx, b, conversationID, "Usage: /add <url>\nExample: /add https://example.com/rss.xml")
		return nil
	}

	lines := lo.Map(urls, func(url string, _ int) string {
		if err := h.registry.Add(conversationID, url); err != nil {
			return fmt.Sprintf("%s: %s", url, userMessage(err))
		}
		return fmt.Sprintf("Subscribed %s", url)
	})

	h.reply(ctx, b, conversationID, strings.Join(lines, "\n"))
	return nil
}

func (h *Handler) handleList(ctx context.Context, b *bot.Bot, update *models.Update) error {
	conversationID := update.Message.Chat.ID

	subs := h.registry.List(conversationID)
	if len(subs) == 0 {
		h.reply(ctx, b, conversationID, "No subscriptions yet. Use /add <url> to subscribe.")
		return nil
	}

	h.reply(ctx, b, conversationID, formatList(subs))
	return nil
}

func (h *Handler) handleDel(ctx context.Context, b *bot.Bot, update *models.Update) error {
	conversationID := update.Message.Chat.ID

	selector := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/del"))
	removed, err := h.registry.Remove(conversationID, selector)
	if err != nil {
		return err
	}

	h.reply(ctx, b, conversationID, fmt.Sprintf("Removed %s", removed))
	return nil
}

func (h *Handler) handleFetch(ctx context.Context, b *bot.Bot, update *models.Update) error {
	conversationID := update.Message.Chat.ID

	results := h.engine.FetchAll(ctx, conversationID)

	text := digest.Render(results)
	if text == "" {
		h.reply(ctx, b, conversationID, "No updates")
		return nil
	}

	return h.engine.Deliver(ctx, conversationID, text)
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) error {
	conversationID := update.Message.Chat.ID

	text := fmt.Sprintf(`Bot status:

Subscriptions: %d
Update interval: %d seconds
Max message size: %d
Storage: %s`,
		len(h.registry.List(conversationID)), h.cfg.UpdateInterval, h.cfg.MaxMessageSize, h.cfg.StoragePath)

	h.reply(ctx, b, conversationID, text)
	return nil
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, conversationID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: conversationID,
		Text:   text,
	})
	if err != nil {
		slog.Error("Failed to send reply", "conversation_id", conversationID, "error", err)
	}
}

// formatList renders subscriptions as "[i] url" lines; indices match the
// zero-based selector accepted by /del.
func formatList(subs []subscriptionDomain.FeedSubscription) string {
	lines := lo.Map(subs, func(sub subscriptionDomain.FeedSubscription, i int) string {
		return fmt.Sprintf("[%d] %s", i, sub.URL)
	})
	return strings.Join(lines, "\n")
}

// userMessage maps a handler error to the reply the user sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, sharederrors.ErrInvalidURL):
		return "Invalid URL"
	case errors.Is(err, sharederrors.ErrAlreadySubscribed):
		return "Already subscribed"
	case errors.Is(err, sharederrors.ErrOutOfBounds):
		return "Index out of bounds"
	case errors.Is(err, sharederrors.ErrNotFound):
		return "Subscription not found"
	case errors.Is(err, sharederrors.ErrBadArguments):
		return "Usage: /del <index-or-url>"
	default:
		return "Something went wrong, try again later"
	}
}
