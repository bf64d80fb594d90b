package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replytrack-backend/internal/tracking/domain"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	s.calls++
	return s.text, s.err
}

func thread() []*domain.Message {
	return []*domain.Message{
		{ID: "m1", From: "sam@example.com", To: "me@example.com", Subject: "Contract", Body: "Can you send the contract?", Date: time.Now().Add(-time.Hour)},
		{ID: "m2", From: "me@example.com", To: "sam@example.com", Subject: "Re: Contract", Body: "Attached. Let me know.", Date: time.Now()},
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    domain.ThreadStatus
		wantErr bool
	}{
		{"plain json", `{"status":"AWAITING_REPLY","rationale":"asked a question"}`, domain.StatusAwaitingReply, false},
		{"code fence", "```json\n{\"status\": \"needs_reply\", \"rationale\": \"x\"}\n```", domain.StatusNeedsReply, false},
		{"surrounding prose", `Sure! {"status":"NONE","rationale":"thanks"} hope it helps`, domain.StatusNone, false},
		{"unknown status", `{"status":"MAYBE"}`, "", true},
		{"no json", `I think it needs a reply`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrClassification))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.Status)
		})
	}
}

func TestAssistantWrapsProviderFailure(t *testing.T) {
	a := newAssistant("stub", &stubGenerator{err: errors.New("dial tcp: connection refused")})

	_, err := a.DetermineThreadStatus(context.Background(), thread(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrClassification))
}

func TestAssistantEmptyThreadIsNone(t *testing.T) {
	gen := &stubGenerator{}
	a := newAssistant("stub", gen)

	verdict, err := a.DetermineThreadStatus(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNone, verdict.Status)
	assert.Zero(t, gen.calls)
}

func TestGenerateFollowUpWrapsPlainText(t *testing.T) {
	a := newAssistant("stub", &stubGenerator{text: "Hi Sam,\n\nJust checking in on the contract."})

	body, err := a.GenerateFollowUp(context.Background(), thread())
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi Sam,</p><p>Just checking in on the contract.</p>", body)
}

func TestFallbackService(t *testing.T) {
	quota := newAssistant("primary", &stubGenerator{err: errors.New("Gemini API error (429): RESOURCE_EXHAUSTED")})
	secondaryGen := &stubGenerator{text: `{"status":"AWAITING_REPLY","rationale":"ok"}`}
	f := NewFallbackService(quota, newAssistant("secondary", secondaryGen), zerolog.Nop())

	verdict, err := f.DetermineThreadStatus(context.Background(), thread(), true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingReply, verdict.Status)
	assert.Equal(t, 1, secondaryGen.calls)
}

func TestFallbackDraftingTriesPrimaryFirst(t *testing.T) {
	primaryGen := &stubGenerator{text: "Following up from the primary."}
	secondaryGen := &stubGenerator{text: "Following up from the secondary."}
	f := NewFallbackService(newAssistant("primary", primaryGen), newAssistant("secondary", secondaryGen), zerolog.Nop())

	body, err := f.GenerateFollowUp(context.Background(), thread())
	require.NoError(t, err)
	assert.Contains(t, body, "primary")
	assert.Equal(t, 1, primaryGen.calls)
	assert.Zero(t, secondaryGen.calls)

	primaryGen.err = errors.New("dial tcp: connection refused")
	body, err = f.GenerateFollowUp(context.Background(), thread())
	require.NoError(t, err)
	assert.Contains(t, body, "secondary")
	assert.Equal(t, 1, secondaryGen.calls)
}

func TestFormatTranscriptKeepsRecentMessages(t *testing.T) {
	var msgs []*domain.Message
	for i := 0; i < maxTranscriptMessages+5; i++ {
		msgs = append(msgs, &domain.Message{Body: "body", Date: time.Now()})
	}
	out := formatTranscript(msgs)
	assert.Contains(t, out, `index="10"`)
	assert.NotContains(t, out, `index="11"`)
}
