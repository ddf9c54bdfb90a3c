package telegram

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	subscriptionDomain "github.com/tsepanx/rss-tg-bot/internal/modules/subscription/domain"
	sharederrors "github.com/tsepanx/rss-tg-bot/internal/shared/errors"
)

func TestFormatList(t *testing.T) {
	subs := []subscriptionDomain.FeedSubscription{
		{URL: "https://a.test/feed"},
		{URL: "https://b.test/feed"},
	}

	assert.Equal(t, "[0] https://a.test/feed\n[1] https://b.test/feed", formatList(subs))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Invalid URL", userMessage(sharederrors.ErrInvalidURL))
	assert.Equal(t, "Already subscribed", userMessage(sharederrors.ErrAlreadySubscribed))
	assert.Equal(t, "Index out of bounds", userMessage(sharederrors.ErrOutOfBounds))
	assert.Equal(t, "Subscription not found", userMessage(sharederrors.ErrNotFound))
	assert.Equal(t, "Usage: /del <index-or-url>", userMessage(sharederrors.ErrBadArguments))
	assert.Equal(t, "Something went wrong, try again later", userMessage(assert.AnError))
}

func TestUserMessageUnwrapsContext(t *testing.T) {
	wrapped := oops.With("conversation_id", int64(1)).Wrap(sharederrors.ErrInvalidURL)
	assert.Equal(t, "Invalid URL", userMessage(wrapped))
}
