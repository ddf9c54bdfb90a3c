package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/domain"
	subscriptionRepo "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/repository"
	subscriptionService "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/service"
	"github.com/tsepanx/rss-tg-bot/internal/shared/config"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

type fakeFetcher struct {
	docs map[string]*domain.Document
	errs map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*domain.Document, error) {
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if doc, ok := f.docs[url]; ok {
		return doc, nil
	}
	return nil, sharederrors.ErrFeedFetchFailed
}

func testConfig() *config.Config {
	return &config.Config{
		UpdateInterval: 300,
		FetchTimeout:   5,
		MaxMessageSize: 7000,
	}
}

func newEngine(t *testing.T, fetcher *fakeFetcher) (*Service, *subscriptionService.Service) {
	t.Helper()
	repo, err := subscriptionRepo.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	registry, err := subscriptionService.New(repo)
	require.NoError(t, err)
	return New(testConfig(), registry, fetcher), registry
}

func entryAt(title string, published time.Time) domain.Entry {
	return domain.Entry{Title: title, Link: "https://a.test/" + title, Published: published}
}

func TestFetchAllReturnsNewEntriesSortedDesc(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	fetcher := &fakeFetcher{docs: map[string]*domain.Document{
		"https://a.test/feed": {
			Title:   "A Blog",
			Entries: []domain.Entry{entryAt("t1", t1), entryAt("t3", t3), entryAt("t2", t2)},
		},
	}}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://a.test/feed"))

	results := engine.FetchAll(context.Background(), 1)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Failed)
	assert.Equal(t, "A Blog", res.FeedTitle)
	require.Len(t, res.NewEntries, 3)
	assert.Equal(t, "t3", res.NewEntries[0].Title)
	assert.Equal(t, "t2", res.NewEntries[1].Title)
	assert.Equal(t, "t1", res.NewEntries[2].Title)

	// Watermark advanced to "now", past the newest entry
	watermark := registry.List(1)[0].Watermark
	assert.True(t, watermark.After(t3))
}

func TestFetchAllIsIdempotent(t *testing.T) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{docs: map[string]*domain.Document{
		"https://a.test/feed": {Title: "A Blog", Entries: []domain.Entry{entryAt("post", published)}},
	}}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://a.test/feed"))

	first := engine.FetchAll(context.Background(), 1)
	require.Len(t, first[0].NewEntries, 1)
	watermark := registry.List(1)[0].Watermark

	// No new upstream entries: second call yields nothing, watermark untouched
	second := engine.FetchAll(context.Background(), 1)
	assert.False(t, second[0].Failed)
	assert.Empty(t, second[0].NewEntries)
	assert.True(t, watermark.Equal(registry.List(1)[0].Watermark))
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	published := time.Now().Add(-time.Hour)
	fetcher := &fakeFetcher{
		docs: map[string]*domain.Document{
			"https://ok.test/feed": {Title: "OK", Entries: []domain.Entry{entryAt("post", published)}},
		},
		errs: map[string]error{
			"https://down.test/feed": sharederrors.ErrFeedFetchFailed,
		},
	}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://down.test/feed"))
	require.NoError(t, registry.Add(1, "https://ok.test/feed"))

	results := engine.FetchAll(context.Background(), 1)
	require.Len(t, results, 2)

	// Results keep subscription order; the failure never aborts the batch
	assert.True(t, results[0].Failed)
	assert.Empty(t, results[0].NewEntries)
	assert.False(t, results[1].Failed)
	require.Len(t, results[1].NewEntries, 1)

	// Failed feed's watermark is unchanged, so its entries stay new
	subs := registry.List(1)
	assert.True(t, subs[0].Watermark.IsZero())
	assert.False(t, subs[1].Watermark.IsZero())
}

func TestFetchAllEmptyFeedIsSuccess(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*domain.Document{
		"https://quiet.test/feed": {Title: "Quiet"},
	}}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://quiet.test/feed"))

	results := engine.FetchAll(context.Background(), 1)
	require.Len(t, results, 1)
	assert.False(t, results[0].Failed)
	assert.Empty(t, results[0].NewEntries)
	assert.True(t, registry.List(1)[0].Watermark.IsZero())
}

func TestFetchAllFiltersByWatermark(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Now().Add(-time.Minute)
	fetcher := &fakeFetcher{docs: map[string]*domain.Document{
		"https://a.test/feed": {
			Title:   "A Blog",
			Entries: []domain.Entry{entryAt("old", old), entryAt("fresh", fresh)},
		},
	}}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://a.test/feed"))
	require.NoError(t, registry.AdvanceWatermark(1, "https://a.test/feed", old))

	results := engine.FetchAll(context.Background(), 1)
	require.Len(t, results[0].NewEntries, 1)
	assert.Equal(t, "fresh", results[0].NewEntries[0].Title)

	// Entry published exactly at the watermark is not new
	for _, entry := range results[0].NewEntries {
		assert.True(t, entry.Published.After(old))
	}
}

func TestTruncateChunkKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; an odd cut position lands mid-rune
	text := strings.Repeat("é", 50)

	head, tail := truncateChunk(text, 25)
	assert.True(t, utf8.ValidString(head))
	assert.True(t, utf8.ValidString(tail))
	assert.Equal(t, text, head+tail)
	assert.LessOrEqual(t, len(head), 25)
}

func TestTruncateChunkASCII(t *testing.T) {
	head, tail := truncateChunk(strings.Repeat("x", 40), 25)
	assert.Len(t, head, 25)
	assert.Len(t, tail, 15)
}

func TestRecentEntriesAndGeneratedFeed(t *testing.T) {
	published := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{docs: map[string]*domain.Document{
		"https://a.test/feed": {Title: "A Blog", Entries: []domain.Entry{entryAt("post", published)}},
	}}

	engine, registry := newEngine(t, fetcher)
	require.NoError(t, registry.Ensure(1))
	require.NoError(t, registry.Add(1, "https://a.test/feed"))

	_, err := engine.GenerateFeed(1, "http://localhost:8080")
	assert.ErrorIs(t, err, sharederrors.ErrNoRecentEntries)

	engine.FetchAll(context.Background(), 1)

	entries := engine.RecentEntries(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "post", entries[0].Title)

	feed, err := engine.GenerateFeed(1, "http://localhost:8080")
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "post", feed.Items[0].Title)

	rss, err := feed.ToRss()
	require.NoError(t, err)
	assert.Contains(t, rss, "<title>post</title>")
}
