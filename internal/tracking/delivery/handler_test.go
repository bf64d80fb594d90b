package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/scheduler"
	"replytrack-backend/internal/tracking/usecase"
)

type stubPush struct {
	data []byte
	err  error
}

func (s *stubPush) HandleMessage(ctx context.Context, data []byte) error {
	s.data = data
	return s.err
}

func (s *stubPush) WatchAccount(ctx context.Context, accountID string) (uint64, error) {
	if accountID != "acc-1" {
		return 0, domain.ErrNotFound
	}
	return 99, nil
}

type stubSweeper struct {
	runs int
}

func (s *stubSweeper) RunOnce(ctx context.Context) scheduler.SweepResult {
	s.runs++
	return scheduler.SweepResult{Accounts: 2}
}

type stubReconciler struct {
	direction usecase.Direction
	err       error
}

func (s *stubReconciler) Reconcile(ctx context.Context, accountID string, threadID domain.ThreadID, messageID domain.MessageID, direction usecase.Direction) error {
	s.direction = direction
	return s.err
}

type stubTokens struct {
	saved []string
}

func (s *stubTokens) SaveToken(ctx context.Context, accountID, token, deviceInfo string) error {
	s.saved = append(s.saved, accountID+":"+token)
	return nil
}

func newRouter(h *TrackingHandler, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/gmail", h.GmailWebhook)
	internal := r.Group("/api", SecretMiddleware(secret))
	internal.POST("/cron/follow-ups", h.RunFollowUps)
	internal.POST("/accounts/:id/threads/:threadId/reconcile", h.ReconcileThread)
	internal.POST("/accounts/:id/device-tokens", h.RegisterDeviceToken)
	internal.POST("/accounts/:id/watch", h.WatchMailbox)
	return r
}

func do(r http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGmailWebhook(t *testing.T) {
	push := &stubPush{}
	r := newRouter(NewTrackingHandler(push, &stubSweeper{}, &stubReconciler{}, &stubTokens{}, zerolog.Nop()), "")

	payload := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"me@example.com","historyId":7}`))
	rec := do(r, http.MethodPost, "/api/webhooks/gmail", `{"message":{"data":"`+payload+`","messageId":"1"},"subscription":"s"}`, "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.JSONEq(t, `{"emailAddress":"me@example.com","historyId":7}`, string(push.data))
}

func TestGmailWebhookFailureAsksForRetry(t *testing.T) {
	push := &stubPush{err: errors.New("db down")}
	r := newRouter(NewTrackingHandler(push, &stubSweeper{}, &stubReconciler{}, &stubTokens{}, zerolog.Nop()), "")

	payload := base64.StdEncoding.EncodeToString([]byte(`{}`))
	rec := do(r, http.MethodPost, "/api/webhooks/gmail", `{"message":{"data":"`+payload+`"}}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCronRequiresSecret(t *testing.T) {
	sweeper := &stubSweeper{}
	r := newRouter(NewTrackingHandler(&stubPush{}, sweeper, &stubReconciler{}, &stubTokens{}, zerolog.Nop()), "s3cret")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/cron/follow-ups", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/cron/follow-ups", "", "Bearer wrong").Code)
	assert.Zero(t, sweeper.runs)

	rec := do(r, http.MethodPost, "/api/cron/follow-ups", "", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accounts":2`)
	assert.Equal(t, 1, sweeper.runs)
}

func TestReconcileThread(t *testing.T) {
	reconciler := &stubReconciler{}
	r := newRouter(NewTrackingHandler(&stubPush{}, &stubSweeper{}, reconciler, &stubTokens{}, zerolog.Nop()), "")

	rec := do(r, http.MethodPost, "/api/accounts/acc-1/threads/t1/reconcile", `{"message_id":"m1","direction":"OUTBOUND"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.DirectionOutbound, reconciler.direction)

	rec = do(r, http.MethodPost, "/api/accounts/acc-1/threads/t1/reconcile", `{"message_id":"m1","direction":"SIDEWAYS"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reconciler.err = domain.ErrTransientProvider
	rec = do(r, http.MethodPost, "/api/accounts/acc-1/threads/t1/reconcile", `{"message_id":"m1","direction":"INBOUND"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterDeviceToken(t *testing.T) {
	tokens := &stubTokens{}
	r := newRouter(NewTrackingHandler(&stubPush{}, &stubSweeper{}, &stubReconciler{}, tokens, zerolog.Nop()), "")

	rec := do(r, http.MethodPost, "/api/accounts/acc-1/device-tokens", `{"token":"fcm-abc"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"acc-1:fcm-abc"}, tokens.saved)
}

func TestWatchMailbox(t *testing.T) {
	r := newRouter(NewTrackingHandler(&stubPush{}, &stubSweeper{}, &stubReconciler{}, &stubTokens{}, zerolog.Nop()), "")

	rec := do(r, http.MethodPost, "/api/accounts/acc-1/watch", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"history_id":99}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/accounts/nope/watch", "", "").Code)
}
