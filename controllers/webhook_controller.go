package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes leaves headroom above Stripe's largest event payloads.
const maxWebhookBodyBytes = 1 << 20

type WebhookService interface {
	HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (*services.WebhookResult, error)
}

type WebhookController struct {
	webhookService WebhookService
	logger         *zap.Logger
}

func NewWebhookController(webhookService WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{webhookService: webhookService, logger: logger}
}

// StripeWebhook receives Stripe events. Signature failures answer 400 and
// internal failures 500 so Stripe retries; every other outcome answers 200.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			wc.logger.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large", "code": services.ErrValidation.Code})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body", "code": services.ErrValidation.Code})
		return
	}

	result, err := wc.webhookService.HandlePaymentEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}

	se := services.AsServiceError(err)
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": se.Message, "code": se.Code})
	case se.StatusCode >= http.StatusInternalServerError:
		respondError(c, wc.logger, err)
	default:
		wc.logger.Warn("Webhook event not applied",
			zap.String("code", se.Code),
			zap.String("reason", se.Message),
		)
		c.JSON(http.StatusOK, gin.H{"status": services.WebhookIgnored, "reason": se.Code})
	}
}
