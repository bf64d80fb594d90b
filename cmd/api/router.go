package api

import (
	"net/http"

	"replytrack-backend/internal/tracking/delivery"
	"replytrack-backend/pkg/config"
	"replytrack-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, trackingHandler *delivery.TrackingHandler, recorder *metrics.Recorder) {
	// Health check (no auth required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(recorder.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Pub/Sub push subscription; authenticity is left to the push endpoint config
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/gmail", trackingHandler.GmailWebhook)
		}

		// Scheduler trigger (protected by CRON_SECRET when set)
		cron := api.Group("/cron")
		cron.Use(delivery.SecretMiddleware(cfg.CronSecret))
		{
			cron.POST("/follow-ups", trackingHandler.RunFollowUps)
		}

		// Internal account operations (same secret)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.SecretMiddleware(cfg.CronSecret))
		{
			accounts.POST("/:id/watch", trackingHandler.WatchMailbox)
			accounts.POST("/:id/device-tokens", trackingHandler.RegisterDeviceToken)
			accounts.POST("/:id/threads/:threadId/reconcile", trackingHandler.ReconcileThread)
		}
	}
}
