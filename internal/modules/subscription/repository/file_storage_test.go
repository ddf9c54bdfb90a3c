package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

func TestFileStorageRoundTrip(t *testing.T) {
	repo, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	watermark := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	subs := []*domain.FeedSubscription{
		{URL: "https://a.test/feed"},
		{URL: "https://b.test/rss.xml", Watermark: watermark},
		{URL: "https://c.test/atom"},
	}

	require.NoError(t, repo.Save(42, subs))

	loaded, err := repo.Load(42)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// Order and watermark values must survive exactly
	assert.Equal(t, "https://a.test/feed", loaded[0].URL)
	assert.Equal(t, "https://b.test/rss.xml", loaded[1].URL)
	assert.Equal(t, "https://c.test/atom", loaded[2].URL)
	assert.True(t, loaded[0].Watermark.IsZero())
	assert.True(t, watermark.Equal(loaded[1].Watermark))
}

func TestFileStorageLoadMissing(t *testing.T) {
	repo, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Load(999)
	assert.ErrorIs(t, err, sharederrors.ErrNotFound)
}

func TestFileStorageLoadAll(t *testing.T) {
	repo, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, repo.Save(1, []*domain.FeedSubscription{{URL: "https://a.test/feed"}}))
	require.NoError(t, repo.Save(2, []*domain.FeedSubscription{}))

	all, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Len(t, all[1], 1)
	assert.Empty(t, all[2])
}
