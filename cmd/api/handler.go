package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"replytrack-backend/internal/tracking/delivery"
	"replytrack-backend/pkg/config"
	"replytrack-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	config          *config.Config
	trackingHandler *delivery.TrackingHandler
	metrics         *metrics.Recorder
	logger          zerolog.Logger
	server          *http.Server
}

func NewHandler(cfg *config.Config, trackingHandler *delivery.TrackingHandler, recorder *metrics.Recorder, logger zerolog.Logger) *Handler {
	h := &Handler{
		config:          cfg,
		trackingHandler: trackingHandler,
		metrics:         recorder,
		logger:          logger.With().Str("component", "api").Logger(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	// Setup routes
	SetupRoutes(r, h.config, h.trackingHandler, h.metrics)

	h.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// requestLogger logs each request once it completes
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Start serves until Shutdown is called
func (h *Handler) Start() error {
	h.logger.Info().Str("addr", h.server.Addr).Msg("server starting")
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}
