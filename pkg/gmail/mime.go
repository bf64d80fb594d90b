package gmail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"replytrack-backend/internal/tracking/domain"

	"github.com/emersion/go-message/mail"
)

// buildRawMessage renders an RFC 5322 HTML message for Gmail's raw upload
func buildRawMessage(from string, email domain.OutgoingEmail, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(email.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}

	to, err := parseAddresses(email.To)
	if err != nil {
		return nil, fmt.Errorf("invalid To %q: %w", email.To, err)
	}
	if len(to) > 0 {
		h.SetAddressList("To", to)
	}

	cc, err := parseAddresses(email.Cc)
	if err != nil {
		return nil, fmt.Errorf("invalid Cc %q: %w", email.Cc, err)
	}
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}

	if email.InReplyTo != "" {
		h.Set("In-Reply-To", email.InReplyTo)
	}
	if email.References != "" {
		h.Set("References", email.References)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("unable to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, email.HTML); err != nil {
		return nil, fmt.Errorf("unable to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func parseAddresses(list string) ([]*mail.Address, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	return mail.ParseAddressList(list)
}
