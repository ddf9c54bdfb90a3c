package errors

import "errors"

// Registry-level errors, surfaced verbatim as command replies.
var (
	ErrInvalidURL        = errors.New("invalid feed URL")
	ErrAlreadySubscribed = errors.New("already subscribed to this feed")
	ErrOutOfBounds       = errors.New("subscription index out of bounds")
	ErrNotFound          = errors.New("subscription not found")
	ErrBadArguments      = errors.New("bad command arguments")
)

var (
	// ErrFeedFetchFailed marks a single feed's fetch as failed; the cycle
	// continues with the remaining feeds.
	ErrFeedFetchFailed = errors.New("feed fetch failed")

	// ErrNoSplitPoint is returned when a message exceeds the size limit but
	// contains no newline to split at within the limit.
	ErrNoSplitPoint = errors.New("no split point in message")
)

var (
	ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrNoRecentEntries = errors.New("no recent entries for conversation")
)
