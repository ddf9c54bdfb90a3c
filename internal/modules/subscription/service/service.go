package service

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	"github.com/tsepanx/rss-tg-bot/internal/modules/subscription/repository"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

// Service is the subscription registry: per-conversation ordered feed lists
// with a write-through in-memory cache over the repository. A single
// registry-wide RWMutex serializes mutations; conversation counts are small
// enough that finer locking buys nothing.
type Service struct {
	repo repository.Repository
	mu   sync.RWMutex
	subs map[int64][]*domain.FeedSubscription
}

// New creates the registry, loading all persisted subscription lists.
func New(repo repository.Repository) (*Service, error) {
	all, err := repo.LoadAll()
	if err != nil {
		return nil, oops.With("context", "failed to load persisted subscriptions").Wrap(err)
	}

	return &Service{
		repo: repo,
		subs: all,
	}, nil
}

// Ensure idempotently creates an empty subscription list for a conversation.
// Called on every inbound interaction before any other operation.
func (s *Service) Ensure(conversationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[conversationID]; ok {
		return nil
	}

	s.subs[conversationID] = []*domain.FeedSubscription{}
	return s.persist(conversationID)
}

// Add appends a new subscription with a zero watermark.
func (s *Service) Add(conversationID int64, feedURL string) error {
	if err := validateURL(feedURL); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists := lo.ContainsBy(s.subs[conversationID], func(sub *domain.FeedSubscription) bool {
		return sub.URL == feedURL
	})
	if exists {
		return sharederrors.ErrAlreadySubscribed
	}

	s.subs[conversationID] = append(s.subs[conversationID], &domain.FeedSubscription{URL: feedURL})
	return s.persist(conversationID)
}

// List returns the conversation's subscriptions in insertion order.
func (s *Service) List(conversationID int64) []domain.FeedSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.subs[conversationID], func(sub *domain.FeedSubscription, _ int) domain.FeedSubscription {
		return *sub
	})
}

// Remove resolves selector as a zero-based index or a literal URL and removes
// the matching subscription, returning its URL.
func (s *Service) Remove(conversationID int64, selector string) (string, error) {
	tokens := strings.Fields(selector)
	if len(tokens) != 1 {
		return "", sharederrors.ErrBadArguments
	}
	selector = tokens[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[conversationID]

	pos := -1
	if index, err := strconv.Atoi(selector); err == nil {
		if index < 0 || index >= len(subs) {
			return "", sharederrors.ErrOutOfBounds
		}
		pos = index
	} else {
		_, pos, _ = lo.FindIndexOf(subs, func(sub *domain.FeedSubscription) bool {
			return sub.URL == selector
		})
		if pos < 0 {
			return "", sharederrors.ErrNotFound
		}
	}

	removed := subs[pos]
	s.subs[conversationID] = append(subs[:pos], subs[pos+1:]...)
	if err := s.persist(conversationID); err != nil {
		return "", err
	}

	return removed.URL, nil
}

// AdvanceWatermark moves a subscription's watermark forward. Watermarks are
// monotonically non-decreasing; an older timestamp is ignored.
func (s *Service) AdvanceWatermark(conversationID int64, feedURL string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := lo.Find(s.subs[conversationID], func(sub *domain.FeedSubscription) bool {
		return sub.URL == feedURL
	})
	if !ok {
		// Subscription removed mid-cycle
		return sharederrors.ErrNotFound
	}

	if !t.After(sub.Watermark) {
		return nil
	}

	sub.Watermark = t
	return s.persist(conversationID)
}

// Conversations returns all known conversation IDs in stable order.
func (s *Service) Conversations() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := lo.Keys(s.subs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Service) persist(conversationID int64) error {
	if err := s.repo.Save(conversationID, s.subs[conversationID]); err != nil {
		return oops.With("conversation_id", conversationID, "context", "failed to persist subscriptions").Wrap(err)
	}
	return nil
}

func validateURL(feedURL string) error {
	u, err := url.ParseRequestURI(feedURL)
	if err != nil {
		return sharederrors.ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return sharederrors.ErrInvalidURL
	}
	if u.Host == "" {
		return sharederrors.ErrInvalidURL
	}
	return nil
}
