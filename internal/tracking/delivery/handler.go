package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"replytrack-backend/internal/tracking/domain"
	"replytrack-backend/internal/tracking/scheduler"
	"replytrack-backend/internal/tracking/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PushConsumer processes Gmail notifications and manages mailbox watches
type PushConsumer interface {
	HandleMessage(ctx context.Context, data []byte) error
	WatchAccount(ctx context.Context, accountID string) (uint64, error)
}

// Sweeper runs one follow-up pass over all accounts
type Sweeper interface {
	RunOnce(ctx context.Context) scheduler.SweepResult
}

// DeviceTokenStore registers push tokens
type DeviceTokenStore interface {
	SaveToken(ctx context.Context, accountID, token, deviceInfo string) error
}

// TrackingHandler handles webhook, cron and manual reconcile requests
type TrackingHandler struct {
	push       PushConsumer
	sweeper    Sweeper
	reconciler usecase.ReconcileUsecase
	tokens     DeviceTokenStore
	logger     zerolog.Logger
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(push PushConsumer, sweeper Sweeper, reconciler usecase.ReconcileUsecase, tokens DeviceTokenStore, logger zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{
		push:       push,
		sweeper:    sweeper,
		reconciler: reconciler,
		tokens:     tokens,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

// PushEnvelope is the body Pub/Sub push subscriptions POST
type PushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// GmailWebhook accepts a Pub/Sub push delivery. Non-2xx responses make
// Pub/Sub redeliver.
// POST /api/webhooks/gmail
func (h *TrackingHandler) GmailWebhook(c *gin.Context) {
	var envelope PushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push envelope"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		// Dropped, since redelivering it would not help
		h.logger.Warn().Err(err).Str("pubsub_message_id", envelope.Message.MessageID).Msg("undecodable push data")
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.push.HandleMessage(c.Request.Context(), data); err != nil {
		h.logger.Warn().Err(err).Str("pubsub_message_id", envelope.Message.MessageID).Msg("push not processed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retry later"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RunFollowUps runs one follow-up sweep synchronously
// POST /api/cron/follow-ups
func (h *TrackingHandler) RunFollowUps(c *gin.Context) {
	result := h.sweeper.RunOnce(c.Request.Context())
	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// WatchMailbox starts Gmail push notifications for an account
// POST /api/accounts/:id/watch
func (h *TrackingHandler) WatchMailbox(c *gin.Context) {
	historyID, err := h.push.WatchAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history_id": historyID})
}

// ReconcileRequest represents the request body for a manual reconcile
type ReconcileRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Direction string `json:"direction" binding:"required,oneof=INBOUND OUTBOUND"`
}

// ReconcileThread re-derives one thread's status on demand
// POST /api/accounts/:id/threads/:threadId/reconcile
func (h *TrackingHandler) ReconcileThread(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.reconciler.Reconcile(c.Request.Context(),
		c.Param("id"),
		domain.ThreadID(c.Param("threadId")),
		domain.MessageID(req.MessageID),
		usecase.Direction(req.Direction))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
	case errors.Is(err, domain.ErrTransientProvider), errors.Is(err, domain.ErrClassification):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RegisterDeviceTokenRequest represents the request body for registering a push token
type RegisterDeviceTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// RegisterDeviceToken stores an FCM token for follow-up reminders
// POST /api/accounts/:id/device-tokens
func (h *TrackingHandler) RegisterDeviceToken(c *gin.Context) {
	var req RegisterDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tokens.SaveToken(c.Request.Context(), c.Param("id"), req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}
