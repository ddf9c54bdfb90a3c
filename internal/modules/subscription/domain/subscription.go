package domain

import "time"

// FeedSubscription is one feed a conversation is subscribed to. Watermark is
// the publish time of the newest entry already delivered; the zero value
// means nothing has been seen yet, so the first fetch returns everything.
type FeedSubscription struct {
	URL       string    `json:"url"`
	Watermark time.Time `json:"watermark"`
}

// HasSeen reports whether an entry published at t is already covered by the
// watermark. The comparison is strict: an entry published exactly at the
// watermark is not new.
func (s *FeedSubscription) HasSeen(t time.Time) bool {
	return !t.After(s.Watermark)
}
