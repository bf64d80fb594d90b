package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/pkg/fuzzy"
)

// maxMessageChars caps each message in a transcript so long threads fit the context window
const maxMessageChars = 2000

// maxTranscriptMessages keeps only the most recent messages of a thread
const maxTranscriptMessages = 10

func formatTranscript(msgs []*domain.Message) string {
	if len(msgs) > maxTranscriptMessages {
		msgs = msgs[len(msgs)-maxTranscriptMessages:]
	}

	var sb strings.Builder
	for i, m := range msgs {
		body := fuzzy.NormalizeEmailText(m.Body)
		if r := []rune(body); len(r) > maxMessageChars {
			body = string(r[:maxMessageChars]) + "..."
		}
		fmt.Fprintf(&sb, "<message index=\"%d\">\n", i+1)
		fmt.Fprintf(&sb, "From: %s\nTo: %s\nDate: %s\nSubject: %s\n\n%s\n",
			m.From, m.To, m.Date.UTC().Format("2006-01-02 15:04 MST"), m.Subject, body)
		sb.WriteString("</message>\n")
	}
	return sb.String()
}

func statusPrompt(msgs []*domain.Message, userSentLastEmail bool) string {
	lastSender := "the other party"
	if userSentLastEmail {
		lastSender = "the user"
	}

	return fmt.Sprintf(`You are an email assistant that tracks which conversations need attention.
Read the email thread below. The last message was sent by %s.

Decide the status of the thread:
- "AWAITING_REPLY": the user sent the last message and it expects an answer from the other party.
- "NEEDS_REPLY": the other party sent the last message and it expects an answer from the user.
- "NONE": nobody owes a reply (thank-you notes, FYIs, newsletters, closed conversations).

Return ONLY a JSON object, no other text:
{"status": "AWAITING_REPLY" | "NEEDS_REPLY" | "NONE", "rationale": "<one short sentence>"}

THREAD:
%s`, lastSender, formatTranscript(msgs))
}

func followUpPrompt(msgs []*domain.Message) string {
	return fmt.Sprintf(`You are writing on behalf of the user, who sent the last message in this thread and has not received a reply.
Write a short, polite follow-up email that nudges the recipient without repeating the whole previous message.

RULES:
- 2 to 4 sentences, same language as the thread.
- No subject line, no signature placeholder, no markdown.
- Output simple HTML using <p> and <br> only.

THREAD:
%s

FOLLOW-UP:`, formatTranscript(msgs))
}

// parseVerdict extracts the JSON verdict from a model response
func parseVerdict(text string) (*domain.StatusVerdict, error) {
	text = stripCodeFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrClassification)
	}

	var raw struct {
		Status    string `json:"status"`
		Rationale string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassification, err)
	}

	status, ok := domain.ParseThreadStatus(strings.ToUpper(strings.TrimSpace(raw.Status)))
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrClassification, raw.Status)
	}
	return &domain.StatusVerdict{Status: status, Rationale: raw.Rationale}, nil
}

func cleanDraftBody(text string) string {
	text = strings.TrimSpace(stripCodeFence(text))
	if text == "" {
		return ""
	}
	if !strings.Contains(text, "<") {
		paragraphs := strings.Split(text, "\n\n")
		for i, p := range paragraphs {
			paragraphs[i] = "<p>" + strings.ReplaceAll(strings.TrimSpace(p), "\n", "<br>") + "</p>"
		}
		text = strings.Join(paragraphs, "")
	}
	return text
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
