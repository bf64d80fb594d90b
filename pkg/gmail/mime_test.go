package gmail

import (
	"strings"
	"testing"
	"time"

	"replytrack-backend/internal/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRawMessage(t *testing.T) {
	raw, err := buildRawMessage("me@example.com", domain.OutgoingEmail{
		ThreadID:   "t1",
		To:         "Sam <sam@example.com>",
		Subject:    "Re: Contract",
		HTML:       "<p>Just checking in.</p>",
		InReplyTo:  "<abc@mail.example.com>",
		References: "<abc@mail.example.com>",
	}, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "sam@example.com")
	assert.Contains(t, text, "me@example.com")
	assert.Contains(t, text, "In-Reply-To: <abc@mail.example.com>")
	assert.Contains(t, text, "text/html")
	assert.Contains(t, text, "Just checking in.")
	assert.True(t, strings.Contains(text, "Subject: Re: Contract"))
}

func TestBuildRawMessageRejectsBadAddress(t *testing.T) {
	_, err := buildRawMessage("", domain.OutgoingEmail{To: "not an address <"}, time.Now())
	assert.Error(t, err)
}

func TestExtractAddress(t *testing.T) {
	assert.Equal(t, "sam@example.com", extractAddress("Sam <Sam@Example.com>"))
	assert.Equal(t, "sam@example.com", extractAddress("sam@example.com"))
	assert.Equal(t, "a@b.c", extractAddress(`"Weird, Name" <a@b.c>`))
}
