package domain

import "time"

// Entry is a read-only projection of one feed item. Never persisted.
type Entry struct {
	ID        string
	Link      string
	Title     string
	Content   string
	Published time.Time
}

// Document is a parsed feed as returned by the fetcher boundary.
type Document struct {
	Title   string
	Entries []Entry
}

// FetchResult is the per-feed outcome of one fetch cycle. A successful fetch
// with no new entries has Failed=false and empty NewEntries; the renderer
// omits it. A failed fetch is reported as an error line.
type FetchResult struct {
	URL        string
	FeedTitle  string
	NewEntries []Entry
	Failed     bool
}
