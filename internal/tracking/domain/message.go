package domain

import (
	"sort"
	"time"
)

// Message is a provider message reduced to what reconciliation needs
type Message struct {
	ID         MessageID `json:"id"`
	ThreadID   ThreadID  `json:"thread_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Cc         string    `json:"cc,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	IsHTML     bool      `json:"is_html"`
	Date       time.Time `json:"date"`
	LabelIDs   []string  `json:"label_ids,omitempty"`
	HeaderID   string    `json:"header_message_id,omitempty"` // RFC 5322 Message-ID
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	References string    `json:"references,omitempty"`
}

// HasLabel reports whether the message carries the given provider label id
func (m *Message) HasLabel(labelID string) bool {
	for _, l := range m.LabelIDs {
		if l == labelID {
			return true
		}
	}
	return false
}

// Draft is an unsent provider draft. MessageID is the id of the message
// object backing the draft, which becomes the sent message id when the
// provider's own send-draft path consumes it.
type Draft struct {
	ID        DraftID   `json:"id"`
	MessageID MessageID `json:"message_id"`
	ThreadID  ThreadID  `json:"thread_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
}

// Label is a provider label
type Label struct {
	ID   LabelID `json:"id"`
	Name string  `json:"name"`
}

// OutgoingEmail describes a draft or message to be created by the provider
type OutgoingEmail struct {
	ThreadID   ThreadID
	To         string
	Cc         string
	Subject    string
	HTML       string
	InReplyTo  string
	References string
}

// SortChronologically orders messages oldest first. Provider thread
// listings are usually ordered already, but webhook-era reads are not
// trusted to be.
func SortChronologically(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Date.Before(msgs[j].Date)
	})
}

// LastMessage returns the chronologically last message, or nil for an empty thread
func LastMessage(msgs []*Message) *Message {
	var last *Message
	for _, m := range msgs {
		if last == nil || !m.Date.Before(last.Date) {
			last = m
		}
	}
	return last
}
