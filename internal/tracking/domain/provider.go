package domain

import "context"

// MailProvider is the uniform capability surface over a mail backend for
// one email account. Implementations return errors wrapping ErrNotFound
// when the target is absent and ErrTransientProvider for retryable failures.
type MailProvider interface {
	GetMessage(ctx context.Context, id MessageID) (*Message, error)
	GetThreadMessages(ctx context.Context, threadID ThreadID) ([]*Message, error)
	IsSentMessage(msg *Message) bool

	// GetDrafts lists drafts; maxResults <= 0 lists every page
	GetDrafts(ctx context.Context, maxResults int64) ([]*Draft, error)
	GetDraft(ctx context.Context, id DraftID) (*Draft, error)
	CreateDraft(ctx context.Context, email OutgoingEmail) (DraftID, error)
	DeleteDraft(ctx context.Context, id DraftID) error

	GetLabels(ctx context.Context) ([]*Label, error)
	CreateLabel(ctx context.Context, name string) (*Label, error)
	LabelMessage(ctx context.Context, messageID MessageID, labelID LabelID) error

	SendEmailWithHTML(ctx context.Context, email OutgoingEmail) (MessageID, error)
}
