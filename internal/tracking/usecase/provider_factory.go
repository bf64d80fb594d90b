package usecase

import (
	"context"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// TokenStore persists refreshed OAuth tokens
type TokenStore interface {
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string) error
}

// gmailProviderFactory opens Gmail clients and writes refreshed tokens back
type gmailProviderFactory struct {
	gmail  *gmail.Service
	tokens TokenStore
}

// NewGmailProviderFactory creates a ProviderFactory backed by the Gmail API
func NewGmailProviderFactory(svc *gmail.Service, tokens TokenStore) ProviderFactory {
	return &gmailProviderFactory{gmail: svc, tokens: tokens}
}

func (f *gmailProviderFactory) ForAccount(ctx context.Context, account *accountdomain.EmailAccount) (domain.MailProvider, error) {
	accountID := account.ID
	onTokenRefresh := func(token *oauth2.Token) error {
		refresh := token.RefreshToken
		if refresh == "" {
			refresh = account.RefreshToken
		}
		return f.tokens.UpdateTokens(context.Background(), accountID, token.AccessToken, refresh)
	}
	client, err := f.gmail.ForAccount(ctx, account, onTokenRefresh)
	if err != nil {
		return nil, err
	}
	return client, nil
}
