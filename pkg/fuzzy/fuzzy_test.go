package fuzzy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"Hello  World", "hello world", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSimilarity(t *testing.T) {
	draft := "Hi Sam,\n\nThanks for the update. I'll review the contract and get back to you by Friday.\n\nBest,\nAlex"

	tests := []struct {
		name      string
		sent      string
		wantAbove bool
	}{
		{
			name:      "verbatim draft",
			sent:      draft,
			wantAbove: true,
		},
		{
			name:      "verbatim draft rendered as html with quoted thread",
			sent:      `<div dir="ltr">Hi Sam,<br><br>Thanks for the update. I'll review the contract and get back to you by Friday.<br><br>Best,<br>Alex</div><div class="gmail_quote">On Mon, Mar 2, 2026 Sam wrote:<blockquote>Here is the contract.</blockquote></div>`,
			wantAbove: true,
		},
		{
			name:      "plain text reply with quoted lines",
			sent:      draft + "\n\nOn Mon, Mar 2, 2026 at 9:00 AM Sam <sam@example.com> wrote:\n> Here is the contract.\n> Let me know.",
			wantAbove: true,
		},
		{
			name:      "small edit",
			sent:      "Hi Sam,\n\nThanks for the update. I'll review the contract and get back to you by Friday!\n\nBest,\nAlex",
			wantAbove: true,
		},
		{
			name:      "unrelated reply",
			sent:      "Can we move our call to next Tuesday afternoon? Something came up.",
			wantAbove: false,
		},
		{
			name:      "empty reply",
			sent:      "",
			wantAbove: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Similarity(draft, tt.sent)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			if tt.wantAbove {
				assert.GreaterOrEqual(t, score, 0.9)
			} else {
				assert.Less(t, score, 0.9)
			}
		})
	}
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Same text", "  same   TEXT "))
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarityLongBodies(t *testing.T) {
	opening := strings.Repeat("Thanks for the update on the contract. ", 120)
	is := assert.New(t)
	is.Greater(len([]rune(opening)), maxCompareRunes)

	// A shared opening longer than one window must not hide what follows it.
	cancelled := opening + strings.Repeat("We are cancelling the deal. ", 140)
	is.Less(Similarity(opening, cancelled), 0.9)
	is.Less(Similarity(cancelled, opening), 0.9)

	is.Equal(1.0, Similarity(cancelled, cancelled))

	edited := strings.Replace(cancelled, "cancelling the deal", "cancelling the meal", 1)
	is.GreaterOrEqual(Similarity(cancelled, edited), 0.9)
}

func TestNormalizeEmailText(t *testing.T) {
	assert.Equal(t, "hello & welcome", NormalizeEmailText("<p>Hello &amp; <b>welcome</b></p>"))
	assert.Equal(t, "reply", NormalizeEmailText("Reply\n> quoted\n>> more"))
}
