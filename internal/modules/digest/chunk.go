package digest

import (
	"strings"

	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

// Split cuts text for a size-limited transport: head is everything before the
// last newline within the first maxSize bytes, tail is everything from that
// newline onward (inclusive), so head+tail always reproduces text exactly.
// Returns ErrNoSplitPoint when the prefix contains no newline. Defined for
// text longer than maxSize; shorter text comes back whole.
func Split(text string, maxSize int) (string, string, error) {
	if len(text) <= maxSize {
		return text, "", nil
	}

	// A border at position 0 would yield an empty head and a tail identical
	// to the input, so a leading newline is not a usable split point.
	border := strings.LastIndex(text[:maxSize], "\n")
	if border <= 0 {
		return "", "", sharederrors.ErrNoSplitPoint
	}

	return text[:border], text[border:], nil
}
