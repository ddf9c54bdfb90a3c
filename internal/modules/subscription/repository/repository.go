package repository

import (
	"github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
)

// Repository defines the interface for subscription list persistence
// This abstraction allows easy replacement of storage implementations
// (e.g., FileStorage -> PostgreSQL -> MongoDB)
type Repository interface {
	Save(conversationID int64, subs []*domain.FeedSubscription) error
	Load(conversationID int64) ([]*domain.FeedSubscription, error)
	LoadAll() (map[int64][]*domain.FeedSubscription, error)
}
