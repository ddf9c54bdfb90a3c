package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

// FileStorage implements Repository using one JSON file per conversation.
// The JSON array preserves subscription order; watermarks round-trip as
// RFC 3339 timestamps.
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based subscription repository
func NewFileStorage(basePath string) (Repository, error) {
	subsPath := filepath.Join(basePath, "subscriptions")
	if err := os.MkdirAll(subsPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create subscriptions directory").Wrap(err)
	}

	return &FileStorage{basePath: subsPath}, nil
}

func (s *FileStorage) Save(conversationID int64, subs []*domain.FeedSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.filePath(conversationID)
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return oops.With("conversation_id", conversationID, "context", "failed to marshal subscriptions").Wrap(err)
	}

	return os.WriteFile(path, data, 0644)
}

func (s *FileStorage) Load(conversationID int64) ([]*domain.FeedSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filePath(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sharederrors.ErrNotFound
		}
		return nil, oops.With("conversation_id", conversationID, "context", "failed to read subscriptions").Wrap(err)
	}

	subs := []*domain.FeedSubscription{}
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, oops.With("conversation_id", conversationID, "context", "failed to unmarshal subscriptions").Wrap(err)
	}

	return subs, nil
}

func (s *FileStorage) LoadAll() (map[int64][]*domain.FeedSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("context", "failed to read subscriptions directory").Wrap(err)
	}

	// Use lo.FilterMap to keep only parseable <conversationID>.json files
	ids := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (int64, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return 0, false
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".json"), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	})

	all := make(map[int64][]*domain.FeedSubscription, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(s.filePath(id))
		if err != nil {
			continue
		}

		subs := []*domain.FeedSubscription{}
		if err := json.Unmarshal(data, &subs); err != nil {
			continue
		}

		all[id] = subs
	}

	return all, nil
}

func (s *FileStorage) filePath(conversationID int64) string {
	return filepath.Join(s.basePath, strconv.FormatInt(conversationID, 10)+".json")
}
