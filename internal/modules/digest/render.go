// Package digest turns fetch results into Telegram-ready HTML and splits
// oversized reports at line boundaries.
package digest

import (
	"fmt"
	"html"
	"strings"

	"github.com/tsepanx/rss-tg-bot/internal/modules/feed/domain"
)

// Render builds the update report: a bold title line per feed that produced
// new entries, one "[i] title" line per entry with the index linked to the
// entry, then one "err: <url>" line per failed feed. Returns "" when there is
// nothing to report; callers substitute a fixed no-updates message.
func Render(results []domain.FetchResult) string {
	var b strings.Builder

	for _, res := range results {
		if res.Failed || len(res.NewEntries) == 0 {
			continue
		}

		title := res.FeedTitle
		if title == "" {
			title = res.URL
		}
		b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(title)))

		for i, entry := range res.NewEntries {
			b.WriteString(fmt.Sprintf("<a href=\"%s\">[%d]</a> %s\n", html.EscapeString(entry.Link), i, html.EscapeString(entry.Title)))
		}
		b.WriteString("\n")
	}

	for _, res := range results {
		if res.Failed {
			b.WriteString(fmt.Sprintf("err: %s\n", html.EscapeString(res.URL)))
		}
	}

	return b.String()
}
