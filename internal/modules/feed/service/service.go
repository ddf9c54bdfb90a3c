package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/gorilla/feeds"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/tsepanx/rss-tg-bot/internal/modules/digest"
	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/domain"
	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/fetcher"
	subscriptionDomain "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	subscriptionService "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/service"
	"github.com/tsepanx/rss-tg-bot/internal/shared/config"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

// Keep enough recently delivered entries per conversation to fill the RSS
// export endpoint.
const recentEntriesCap = 50

// Service is the incremental fetch engine plus the periodic dispatcher. One
// fetch cycle walks a conversation's subscriptions in order, isolates
// per-feed failures and advances each feed's watermark only after its own
// fetch succeeds with new entries, so an abandoned cycle never corrupts
// state.
type Service struct {
	cfg      *config.Config
	registry *subscriptionService.Service
	fetcher  fetcher.Fetcher
	bot      *bot.Bot

	// Per-conversation cycle locks: a periodic cycle and an on-demand /fetch
	// for the same conversation never interleave.
	cycleMu sync.Mutex
	cycles  map[int64]*sync.Mutex

	recentMu sync.RWMutex
	recent   map[int64][]domain.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the fetch engine
func New(cfg *config.Config, registry *subscriptionService.Service, fetcher fetcher.Fetcher) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		registry: registry,
		fetcher:  fetcher,
		cycles:   make(map[int64]*sync.Mutex),
		recent:   make(map[int64][]domain.Entry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetBot sets the Telegram bot instance used for delivery
func (s *Service) SetBot(b *bot.Bot) {
	s.bot = b
}

// FetchAll runs one fetch cycle for a conversation, returning one result per
// subscription in list order.
func (s *Service) FetchAll(ctx context.Context, conversationID int64) []domain.FetchResult {
	lock := s.cycleLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	subs := s.registry.List(conversationID)
	now := time.Now()

	results := make([]domain.FetchResult, 0, len(subs))
	for _, sub := range subs {
		result := domain.FetchResult{URL: sub.URL}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeoutDuration())
		doc, err := s.fetcher.Fetch(fetchCtx, sub.URL)
		cancel()
		if err != nil {
			slog.Warn("Feed fetch failed", "conversation_id", conversationID, "url", sub.URL, "error", err)
			result.Failed = true
			results = append(results, result)
			continue
		}

		newEntries := newerThan(doc.Entries, sub)
		if len(newEntries) > 0 {
			result.FeedTitle = doc.Title
			result.NewEntries = newEntries
			if err := s.registry.AdvanceWatermark(conversationID, sub.URL, now); err != nil {
				// Subscription was removed while we were fetching
				slog.Warn("Failed to advance watermark", "conversation_id", conversationID, "url", sub.URL, "error", err)
			}
		}

		results = append(results, result)
	}

	s.remember(conversationID, results)
	return results
}

// newerThan sorts entries by publish time descending and keeps those strictly
// newer than the subscription's watermark at cycle start.
func newerThan(entries []domain.Entry, sub subscriptionDomain.FeedSubscription) []domain.Entry {
	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})

	return lo.Filter(sorted, func(entry domain.Entry, _ int) bool {
		return !sub.HasSeen(entry.Published)
	})
}

// Deliver sends text to a conversation, splitting it at line boundaries
// whenever it exceeds the configured message size. A chunk with no split
// point is truncated rather than dropped.
func (s *Service) Deliver(ctx context.Context, conversationID int64, text string) error {
	if s.bot == nil {
		return oops.Errorf("bot not initialized")
	}

	maxSize := s.cfg.MaxMessageSize
	for len(text) > maxSize {
		head, tail, err := digest.Split(text, maxSize)
		if err != nil {
			slog.Warn("No split point in oversized message, truncating chunk", "conversation_id", conversationID, "size", len(text))
			head, tail = truncateChunk(text, maxSize)
		}
		if err := s.send(ctx, conversationID, head); err != nil {
			return err
		}
		text = tail
	}

	return s.send(ctx, conversationID, text)
}

// truncateChunk cuts text at maxSize, backing off to a rune boundary so the
// chunk stays valid UTF-8.
func truncateChunk(text string, maxSize int) (string, string) {
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], text[cut:]
}

func (s *Service) send(ctx context.Context, conversationID int64, text string) error {
	if len(text) == 0 {
		return nil
	}

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    conversationID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return oops.With("conversation_id", conversationID, "context", "failed to send message").Wrap(err)
	}
	return nil
}

// Start begins the periodic dispatch loop
func (s *Service) Start() {
	s.wg.Add(1)
	go s.dispatchLoop()
}

// Stop stops the dispatcher and waits for in-flight cycles
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) dispatchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.UpdateIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatchAll()
		}
	}
}

// dispatchAll runs one cycle per known conversation. Conversations are
// independent and fetched concurrently.
func (s *Service) dispatchAll() {
	for _, conversationID := range s.registry.Conversations() {
		s.wg.Add(1)
		go func(id int64) {
			defer s.wg.Done()
			s.runCycle(id)
		}(conversationID)
	}
}

func (s *Service) runCycle(conversationID int64) {
	results := s.FetchAll(s.ctx, conversationID)

	text := digest.Render(results)
	if text == "" {
		// Nothing new and nothing broken; periodic cycles stay silent
		return
	}

	if err := s.Deliver(s.ctx, conversationID, text); err != nil {
		slog.Error("Failed to deliver digest", "conversation_id", conversationID, "error", err)
		return
	}

	slog.Info("Digest delivered", "conversation_id", conversationID, "feeds", len(results))
}

func (s *Service) cycleLock(conversationID int64) *sync.Mutex {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	lock, ok := s.cycles[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.cycles[conversationID] = lock
	}
	return lock
}

func (s *Service) remember(conversationID int64, results []domain.FetchResult) {
	entries := lo.FlatMap(results, func(res domain.FetchResult, _ int) []domain.Entry {
		return res.NewEntries
	})
	if len(entries) == 0 {
		return
	}

	s.recentMu.Lock()
	defer s.recentMu.Unlock()

	combined := append(entries, s.recent[conversationID]...)
	if len(combined) > recentEntriesCap {
		combined = combined[:recentEntriesCap]
	}
	s.recent[conversationID] = combined
}

// RecentEntries returns the conversation's most recently delivered entries,
// newest first.
func (s *Service) RecentEntries(conversationID int64) []domain.Entry {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()

	entries := make([]domain.Entry, len(s.recent[conversationID]))
	copy(entries, s.recent[conversationID])
	return entries
}

// GenerateFeed re-exports a conversation's recently delivered entries as an
// RSS feed for the HTTP endpoint.
func (s *Service) GenerateFeed(conversationID int64, baseURL string) (*feeds.Feed, error) {
	entries := s.RecentEntries(conversationID)
	if len(entries) == 0 {
		return nil, oops.With("conversation_id", conversationID).Wrap(sharederrors.ErrNoRecentEntries)
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Digest %d", conversationID),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/digest/%d", baseURL, conversationID)},
		Description: "Recently fetched entries from subscribed feeds",
		Created:     time.Now(),
	}

	feed.Items = lo.Map(entries, func(entry domain.Entry, _ int) *feeds.Item {
		return &feeds.Item{
			Id:          entry.ID,
			Title:       entry.Title,
			Link:        &feeds.Link{Href: entry.Link},
			Description: entry.Content,
			Created:     entry.Published,
		}
	})

	return feed, nil
}
