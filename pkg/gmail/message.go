package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"replytrack-backend/internal/tracking/domain"

	"google.golang.org/api/gmail/v1"
)

// Helper functions

func convertGmailMessage(msg *gmail.Message) *domain.Message {
	out := &domain.Message{
		ID:       domain.MessageID(msg.Id),
		ThreadID: domain.ThreadID(msg.ThreadId),
		LabelIDs: msg.LabelIds,
		Date:     time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return out
	}

	headers := msg.Payload.Headers
	out.From = getHeader(headers, "From")
	out.To = getHeader(headers, "To")
	out.Cc = getHeader(headers, "Cc")
	out.Subject = getHeader(headers, "Subject")
	out.HeaderID = getHeader(headers, "Message-ID")
	if out.HeaderID == "" {
		out.HeaderID = getHeader(headers, "Message-Id")
	}
	out.InReplyTo = getHeader(headers, "In-Reply-To")
	out.References = getHeader(headers, "References")
	out.Body, out.IsHTML = getEmailBody(msg.Payload)
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	// If the payload itself is the body
	if payload.Body != nil && payload.Body.Data != "" {
		if data, err := decodeBody(payload.Body.Data); err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody string
	var plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
				switch part.MimeType {
				case "text/html":
					if data, err := decodeBody(part.Body.Data); err == nil && htmlBody == "" {
						htmlBody = string(data)
					}
				case "text/plain":
					if data, err := decodeBody(part.Body.Data); err == nil && plainBody == "" {
						plainBody = string(data)
					}
				}
			}

			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}

	findBody(payload.Parts)

	if htmlBody != "" {
		return htmlBody, true
	}
	return plainBody, false
}

// decodeBody accepts both padded and unpadded base64url, Gmail emits either
func decodeBody(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}

// extractAddress returns the lowercased bare address of a From/To header value
func extractAddress(header string) string {
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.ToLower(addr.Address)
	}
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.LastIndex(header, ">"); end > start {
			return strings.ToLower(strings.TrimSpace(header[start+1 : end]))
		}
	}
	return strings.ToLower(strings.TrimSpace(header))
}
