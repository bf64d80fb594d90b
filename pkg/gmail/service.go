package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	"replytrack-backend/internal/tracking/domain"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// Service builds per-account Gmail clients. One rate limiter is kept per
// account so parallel reconciliations share that mailbox's quota.
type Service struct {
	clientID          string
	clientSecret      string
	requestsPerSecond float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	logger   zerolog.Logger
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	mu       sync.Mutex
	current  *oauth2.Token
	callback TokenUpdateFunc
	logger   zerolog.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist refreshed token")
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string, requestsPerSecond float64, logger zerolog.Logger) *Service {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &Service{
		clientID:          clientID,
		clientSecret:      clientSecret,
		requestsPerSecond: requestsPerSecond,
		limiters:          make(map[string]*rate.Limiter),
		logger:            logger.With().Str("component", "gmail").Logger(),
	}
}

func (s *Service) limiterFor(accountID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[accountID]
	if !ok {
		burst := int(s.requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(s.requestsPerSecond), burst)
		s.limiters[accountID] = l
	}
	return l
}

// ForAccount creates a Gmail client bound to the account's OAuth tokens
func (s *Service) ForAccount(ctx context.Context, account *accountdomain.EmailAccount, onTokenRefresh TokenUpdateFunc) (*Client, error) {
	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if account.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// The token source outlives this call, so it must not capture a request-scoped context
	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(context.Background(), token),
		current:  token,
		callback: onTokenRefresh,
		logger:   s.logger.With().Str("email_account_id", account.ID).Logger(),
	}

	httpClient := oauth2.NewClient(context.Background(), wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	return &Client{
		users:        srv.Users,
		accountEmail: strings.ToLower(account.Email),
		limiter:      s.limiterFor(account.ID),
		logger:       wrappedSource.logger,
	}, nil
}

// Client implements domain.MailProvider for one Gmail mailbox
type Client struct {
	users        *gmail.UsersService
	accountEmail string
	limiter      *rate.Limiter
	logger       zerolog.Logger
}

var _ domain.MailProvider = (*Client)(nil)

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gmail rate limiter: %v: %w", err, domain.ErrTransientProvider)
	}
	return nil
}

// GetMessage retrieves a single message
func (c *Client) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	msg, err := c.users.Messages.Get(user, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "get message "+string(id))
	}
	return convertGmailMessage(msg), nil
}

// GetThreadMessages returns the sent and received messages of a thread,
// oldest first. Draft messages are left out so they never reach the
// classifier or a message-based decision.
func (c *Client) GetThreadMessages(ctx context.Context, threadID domain.ThreadID) ([]*domain.Message, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	thread, err := c.users.Threads.Get(user, string(threadID)).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "get thread "+string(threadID))
	}

	messages := make([]*domain.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		if hasLabel(m.LabelIds, "DRAFT") {
			continue
		}
		messages = append(messages, convertGmailMessage(m))
	}
	domain.SortChronologically(messages)
	return messages, nil
}

// IsSentMessage reports whether the account owner sent the message
func (c *Client) IsSentMessage(msg *domain.Message) bool {
	if msg.HasLabel("SENT") {
		return true
	}
	return c.accountEmail != "" && extractAddress(msg.From) == c.accountEmail
}

// draftPageSize is the largest page the drafts listing accepts
const draftPageSize = 500

// GetDrafts lists drafts across pages, stopping after maxResults when it is
// positive. Only ids and their backing message/thread ids are filled in.
func (c *Client) GetDrafts(ctx context.Context, maxResults int64) ([]*domain.Draft, error) {
	var drafts []*domain.Draft
	pageToken := ""

	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		pageSize := int64(draftPageSize)
		if maxResults > 0 && maxResults-int64(len(drafts)) < pageSize {
			pageSize = maxResults - int64(len(drafts))
		}
		call := c.users.Drafts.List(user).MaxResults(pageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, wrapError(err, "list drafts")
		}

		for _, d := range resp.Drafts {
			draft := &domain.Draft{ID: domain.DraftID(d.Id)}
			if d.Message != nil {
				draft.MessageID = domain.MessageID(d.Message.Id)
				draft.ThreadID = domain.ThreadID(d.Message.ThreadId)
			}
			drafts = append(drafts, draft)
		}

		if resp.NextPageToken == "" || (maxResults > 0 && int64(len(drafts)) >= maxResults) {
			return drafts, nil
		}
		pageToken = resp.NextPageToken
	}
}

// GetDraft retrieves a draft with its body
func (c *Client) GetDraft(ctx context.Context, id domain.DraftID) (*domain.Draft, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	d, err := c.users.Drafts.Get(user, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "get draft "+string(id))
	}

	draft := &domain.Draft{ID: domain.DraftID(d.Id)}
	if d.Message != nil {
		msg := convertGmailMessage(d.Message)
		draft.MessageID = msg.ID
		draft.ThreadID = msg.ThreadID
		draft.Subject = msg.Subject
		draft.Body = msg.Body
	}
	return draft, nil
}

// CreateDraft creates a draft in the given thread
func (c *Client) CreateDraft(ctx context.Context, email domain.OutgoingEmail) (domain.DraftID, error) {
	raw, err := buildRawMessage(c.accountEmail, email, time.Now())
	if err != nil {
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	created, err := c.users.Drafts.Create(user, &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString(raw),
			ThreadId: string(email.ThreadID),
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err, "create draft")
	}
	return domain.DraftID(created.Id), nil
}

// DeleteDraft permanently deletes a draft. Gmail's draft delete endpoint
// only accepts draft ids, never message ids.
func (c *Client) DeleteDraft(ctx context.Context, id domain.DraftID) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.users.Drafts.Delete(user, string(id)).Context(ctx).Do(); err != nil {
		return wrapError(err, "delete draft "+string(id))
	}
	return nil
}

// GetLabels retrieves all labels
func (c *Client) GetLabels(ctx context.Context) ([]*domain.Label, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "list labels")
	}

	labels := make([]*domain.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, &domain.Label{ID: domain.LabelID(l.Id), Name: l.Name})
	}
	return labels, nil
}

// CreateLabel creates a user label visible in the label list
func (c *Client) CreateLabel(ctx context.Context, name string) (*domain.Label, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	l, err := c.users.Labels.Create(user, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, "create label "+name)
	}
	return &domain.Label{ID: domain.LabelID(l.Id), Name: l.Name}, nil
}

// LabelMessage adds a label to a message
func (c *Client) LabelMessage(ctx context.Context, messageID domain.MessageID, labelID domain.LabelID) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.users.Messages.Modify(user, string(messageID), &gmail.ModifyMessageRequest{
		AddLabelIds: []string{string(labelID)},
	}).Context(ctx).Do()
	if err != nil {
		return wrapError(err, "label message "+string(messageID))
	}
	return nil
}

// SendEmailWithHTML sends an HTML email, threading it when ThreadID is set
func (c *Client) SendEmailWithHTML(ctx context.Context, email domain.OutgoingEmail) (domain.MessageID, error) {
	raw, err := buildRawMessage(c.accountEmail, email, time.Now())
	if err != nil {
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	sent, err := c.users.Messages.Send(user, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: string(email.ThreadID),
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapError(err, "send message")
	}
	return domain.MessageID(sent.Id), nil
}

// ListAddedMessages returns ids of messages added since startHistoryID and
// the newest history id seen
func (c *Client) ListAddedMessages(ctx context.Context, startHistoryID uint64) ([]domain.MessageID, uint64, error) {
	var ids []domain.MessageID
	seen := make(map[string]struct{})
	latest := startHistoryID
	pageToken := ""

	for {
		if err := c.wait(ctx); err != nil {
			return nil, 0, err
		}
		call := c.users.History.List(user).
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, 0, wrapError(err, "list history")
		}

		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				if _, dup := seen[added.Message.Id]; dup {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				ids = append(ids, domain.MessageID(added.Message.Id))
			}
		}
		if resp.HistoryId > latest {
			latest = resp.HistoryId
		}

		if resp.NextPageToken == "" {
			return ids, latest, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Watch sets up push notifications for the user's mailbox
func (c *Client) Watch(ctx context.Context, topicName string) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	// Clear any previous watch; Gmail allows one push client per user
	if err := c.users.Stop(user).Context(ctx).Do(); err != nil {
		c.logger.Debug().Err(err).Msg("stop previous watch failed")
	}

	resp, err := c.users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX", "SENT"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, wrapError(err, "watch mailbox")
	}
	return resp.HistoryId, nil
}

// wrapError maps Gmail API failures onto the domain error taxonomy
func wrapError(err error, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
			return fmt.Errorf("gmail %s: %v: %w", op, err, domain.ErrNotFound)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("gmail %s: %v: %w", op, err, domain.ErrTransientProvider)
		case apiErr.Code == http.StatusForbidden && isRateLimitReason(apiErr):
			return fmt.Errorf("gmail %s: %v: %w", op, err, domain.ErrTransientProvider)
		}
		return fmt.Errorf("gmail %s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gmail %s: %v: %w", op, err, domain.ErrTransientProvider)
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}

func isRateLimitReason(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
