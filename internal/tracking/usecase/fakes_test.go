package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	accountdomain "replytrack-backend/internal/account/domain"
	rulesdomain "replytrack-backend/internal/rules/domain"
	"replytrack-backend/internal/tracking/domain"
)

const ownerEmail = "me@example.com"

// fakeProvider is an in-memory mailbox. Draft ids and message ids live in
// separate maps, so deleting a draft can never remove a message.
type fakeProvider struct {
	mu        sync.Mutex
	messages  map[domain.MessageID]*domain.Message
	drafts    map[domain.DraftID]*domain.Draft
	labels    map[domain.LabelID]*domain.Label
	labelled  map[domain.MessageID][]domain.LabelID
	deleted   []domain.DraftID
	created   []domain.OutgoingEmail
	nextID    int
	threadErr error
	// blocked messages hang in GetMessage until the call context ends
	blocked map[domain.MessageID]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		messages: make(map[domain.MessageID]*domain.Message),
		drafts:   make(map[domain.DraftID]*domain.Draft),
		labels:   make(map[domain.LabelID]*domain.Label),
		labelled: make(map[domain.MessageID][]domain.LabelID),
		blocked:  make(map[domain.MessageID]bool),
	}
}

func (p *fakeProvider) addMessage(id domain.MessageID, thread domain.ThreadID, from, to, body string, at time.Time) *domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := &domain.Message{
		ID: id, ThreadID: thread, From: from, To: to, Subject: "Contract",
		Body: body, Date: at, HeaderID: "<" + string(id) + "@mail.example.com>",
	}
	p.messages[id] = m
	return m
}

func (p *fakeProvider) addDraft(id domain.DraftID, messageID domain.MessageID, thread domain.ThreadID, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drafts[id] = &domain.Draft{ID: id, MessageID: messageID, ThreadID: thread, Body: body}
}

func (p *fakeProvider) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	p.mu.Lock()
	block := p.blocked[id]
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (p *fakeProvider) GetThreadMessages(ctx context.Context, threadID domain.ThreadID) ([]*domain.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.threadErr != nil {
		return nil, p.threadErr
	}
	var out []*domain.Message
	for _, m := range p.messages {
		if m.ThreadID == threadID {
			cp := *m
			out = append(out, &cp)
		}
	}
	// map order is random; callers must not depend on provider ordering
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return out, nil
}

func (p *fakeProvider) IsSentMessage(msg *domain.Message) bool {
	return strings.EqualFold(msg.From, ownerEmail)
}

func (p *fakeProvider) GetDrafts(ctx context.Context, maxResults int64) ([]*domain.Draft, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.Draft
	for _, d := range p.drafts {
		out = append(out, &domain.Draft{ID: d.ID, MessageID: d.MessageID, ThreadID: d.ThreadID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if maxResults > 0 && int64(len(out)) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (p *fakeProvider) GetDraft(ctx context.Context, id domain.DraftID) (*domain.Draft, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.drafts[id]
	if !ok {
		return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (p *fakeProvider) CreateDraft(ctx context.Context, email domain.OutgoingEmail) (domain.DraftID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := domain.DraftID(fmt.Sprintf("r-%d", p.nextID))
	p.drafts[id] = &domain.Draft{ID: id, ThreadID: email.ThreadID, Subject: email.Subject, Body: email.HTML}
	p.created = append(p.created, email)
	return id, nil
}

func (p *fakeProvider) DeleteDraft(ctx context.Context, id domain.DraftID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	if _, ok := p.drafts[id]; !ok {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	delete(p.drafts, id)
	return nil
}

func (p *fakeProvider) GetLabels(ctx context.Context) ([]*domain.Label, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.Label
	for _, l := range p.labels {
		out = append(out, l)
	}
	return out, nil
}

func (p *fakeProvider) CreateLabel(ctx context.Context, name string) (*domain.Label, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.labels {
		if l.Name == name {
			return nil, fmt.Errorf("label %q exists", name)
		}
	}
	l := &domain.Label{ID: domain.LabelID("Label_" + strings.ReplaceAll(name, " ", "_")), Name: name}
	p.labels[l.ID] = l
	return l, nil
}

func (p *fakeProvider) LabelMessage(ctx context.Context, messageID domain.MessageID, labelID domain.LabelID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.messages[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	for _, l := range p.labelled[messageID] {
		if l == labelID {
			return nil
		}
	}
	p.labelled[messageID] = append(p.labelled[messageID], labelID)
	return nil
}

func (p *fakeProvider) SendEmailWithHTML(ctx context.Context, email domain.OutgoingEmail) (domain.MessageID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := domain.MessageID(fmt.Sprintf("s-%d", p.nextID))
	p.messages[id] = &domain.Message{ID: id, ThreadID: email.ThreadID, From: ownerEmail, To: email.To, Body: email.HTML, Date: time.Now()}
	return id, nil
}

// hasLabel reports whether the message carries the label with the given name
func (p *fakeProvider) hasLabel(messageID domain.MessageID, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.labelled[messageID] {
		if l, ok := p.labels[id]; ok && l.Name == name {
			return true
		}
	}
	return false
}

func (p *fakeProvider) labelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ls := range p.labelled {
		n += len(ls)
	}
	return n
}

func (p *fakeProvider) draftsInThread(thread domain.ThreadID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, d := range p.drafts {
		if d.ThreadID == thread {
			n++
		}
	}
	return n
}

type fakeFactory struct {
	provider domain.MailProvider
}

func (f *fakeFactory) ForAccount(ctx context.Context, account *accountdomain.EmailAccount) (domain.MailProvider, error) {
	return f.provider, nil
}

type fakeAccounts struct {
	accounts map[string]*accountdomain.EmailAccount
}

func (f *fakeAccounts) FindByID(ctx context.Context, id string) (*accountdomain.EmailAccount, error) {
	return f.accounts[id], nil
}

// fakeTrackerRepo mirrors the gorm repository's conditional writes
type fakeTrackerRepo struct {
	mu             sync.Mutex
	trackers       map[string]*domain.ThreadTracker
	nextID         int
	createConflict int
}

func newFakeTrackerRepo() *fakeTrackerRepo {
	return &fakeTrackerRepo{trackers: make(map[string]*domain.ThreadTracker)}
}

func (r *fakeTrackerRepo) put(t *domain.ThreadTracker) *domain.ThreadTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		r.nextID++
		t.ID = fmt.Sprintf("trk-%d", r.nextID)
	}
	cp := *t
	r.trackers[t.ID] = &cp
	return t
}

func (r *fakeTrackerRepo) get(id string) *domain.ThreadTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (r *fakeTrackerRepo) open(threadID domain.ThreadID) []*domain.ThreadTracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ThreadTracker
	for _, t := range r.trackers {
		if t.ThreadID == threadID && !t.Resolved {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (r *fakeTrackerRepo) FindByID(ctx context.Context, id string) (*domain.ThreadTracker, error) {
	return r.get(id), nil
}

func (r *fakeTrackerRepo) FindUnresolvedByThread(ctx context.Context, accountID string, threadID domain.ThreadID) ([]*domain.ThreadTracker, error) {
	var out []*domain.ThreadTracker
	for _, t := range r.open(threadID) {
		if t.EmailAccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTrackerRepo) FindPendingFollowUps(ctx context.Context, accountID string) ([]*domain.ThreadTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ThreadTracker
	for _, t := range r.trackers {
		if t.EmailAccountID == accountID && t.EligibleForFollowUp() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTrackerRepo) Create(ctx context.Context, tracker *domain.ThreadTracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createConflict > 0 {
		r.createConflict--
		return domain.ErrOptimisticConflict
	}
	for _, t := range r.trackers {
		if t.EmailAccountID == tracker.EmailAccountID && t.ThreadID == tracker.ThreadID && t.Type == tracker.Type && !t.Resolved {
			return domain.ErrOptimisticConflict
		}
	}
	r.nextID++
	tracker.ID = fmt.Sprintf("trk-%d", r.nextID)
	cp := *tracker
	r.trackers[tracker.ID] = &cp
	return nil
}

func (r *fakeTrackerRepo) Refresh(ctx context.Context, id string, messageID domain.MessageID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok || t.Resolved || t.FollowUpAppliedAt != nil {
		return domain.ErrOptimisticConflict
	}
	t.MessageID = messageID
	t.SentAt = sentAt
	return nil
}

func (r *fakeTrackerRepo) Resolve(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[id]; ok {
		t.Resolved = true
	}
	return nil
}

func (r *fakeTrackerRepo) MarkFollowUpApplied(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok || t.Resolved || t.FollowUpAppliedAt != nil {
		return domain.ErrOptimisticConflict
	}
	t.FollowUpAppliedAt = &at
	return nil
}

type fakeLogRepo struct {
	mu   sync.Mutex
	logs []*domain.DraftSendLog
}

func (r *fakeLogRepo) Create(ctx context.Context, log *domain.DraftSendLog) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ExecutedActionID == log.ExecutedActionID && l.SentMessageID == log.SentMessageID {
			return false, nil
		}
	}
	cp := *log
	r.logs = append(r.logs, &cp)
	return true, nil
}

func (r *fakeLogRepo) FindByActionID(ctx context.Context, actionID string) ([]*domain.DraftSendLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DraftSendLog
	for _, l := range r.logs {
		if l.ExecutedActionID == actionID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeActions struct {
	action *rulesdomain.ActionItem
}

func (f *fakeActions) LatestDraftAction(ctx context.Context, accountID string, threadID domain.ThreadID) (*rulesdomain.ActionItem, error) {
	return f.action, nil
}

// fakeClassifier decides by who sent the last message, like a well-behaved model
type fakeClassifier struct {
	mu       sync.Mutex
	override *domain.StatusVerdict
	err      error
	calls    int
	// block makes the classifier hang until the call context ends
	block bool
}

func (c *fakeClassifier) DetermineThreadStatus(ctx context.Context, msgs []*domain.Message, userSentLastEmail bool) (*domain.StatusVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.override != nil {
		return c.override, nil
	}
	if userSentLastEmail {
		return &domain.StatusVerdict{Status: domain.StatusAwaitingReply, Rationale: "owner asked"}, nil
	}
	return &domain.StatusVerdict{Status: domain.StatusNeedsReply, Rationale: "they asked"}, nil
}

type fakeDrafter struct {
	mu    sync.Mutex
	calls int
}

func (d *fakeDrafter) GenerateFollowUp(ctx context.Context, msgs []*domain.Message) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return "<p>Just following up on this.</p>", nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyFollowUp(ctx context.Context, account *accountdomain.EmailAccount, tracker *domain.ThreadTracker, last *domain.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func days(d float64) *float64 {
	return &d
}
