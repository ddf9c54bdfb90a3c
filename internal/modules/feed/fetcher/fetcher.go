package fetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/oops"

	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/domain"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

const userAgent = "rss-tg-bot/1.0 (+https://github.com/tsepanx/rss-tg-bot)"

// Fetcher retrieves and parses a feed URL. The implementation is the only
// network boundary of a fetch cycle.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Document, error)
}

// HTTP fetches feeds over HTTP and parses them with gofeed.
type HTTP struct {
	parser *gofeed.Parser
	client *http.Client
}

// New creates an HTTP fetcher. Every fetch is bounded by timeout so one
// unreachable feed cannot stall a cycle.
func New(timeout time.Duration) *HTTP {
	return &HTTP{
		parser: gofeed.NewParser(),
		client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTP) Fetch(ctx context.Context, url string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, oops.With("url", url).Wrap(sharederrors.ErrFeedFetchFailed)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, oops.With("url", url, "context", err.Error()).Wrap(sharederrors.ErrFeedFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, oops.With("url", url, "status", resp.StatusCode).Wrap(sharederrors.ErrFeedFetchFailed)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, oops.With("url", url, "context", err.Error()).Wrap(sharederrors.ErrFeedFetchFailed)
	}

	return convert(url, feed)
}

// convert maps a gofeed document onto the domain model. Publish times fall
// back to the updated time; a feed with any untimed entry fails wholly, so a
// half-timestamped feed cannot silently lose entries.
func convert(url string, feed *gofeed.Feed) (*domain.Document, error) {
	doc := &domain.Document{
		Title:   feed.Title,
		Entries: make([]domain.Entry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published == nil {
			return nil, oops.With("url", url, "entry", item.Link, "context", "entry without parseable timestamp").Wrap(sharederrors.ErrFeedFetchFailed)
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		doc.Entries = append(doc.Entries, domain.Entry{
			ID:        item.GUID,
			Link:      item.Link,
			Title:     item.Title,
			Content:   content,
			Published: *published,
		})
	}

	return doc, nil
}
