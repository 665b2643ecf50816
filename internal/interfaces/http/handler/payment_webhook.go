package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentapp "github.com/motorline/backend/internal/application/payment"
	"go.uber.org/zap"
)

// maxWebhookPayloadSize caps gateway webhook bodies at 64KB
const maxWebhookPayloadSize = 65536

// PaymentWebhookHandler receives asynchronous payment events from the
// gateway. Signature failures are rejected with 401. Verified events that
// were recorded, ignored or recognized as duplicates are acknowledged with
// 200; an apply failure returns 500 so the gateway redelivers.
type PaymentWebhookHandler struct {
	BaseHandler
	webhooks *paymentapp.WebhookService
	logger   *zap.Logger
}

// NewPaymentWebhookHandler creates a new PaymentWebhookHandler
func NewPaymentWebhookHandler(webhooks *paymentapp.WebhookService, logger *zap.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// RegisterRoutes registers the webhook endpoint
func (h *PaymentWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.Handle)
}

// WebhookAck is the acknowledgement body returned to the gateway
type WebhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

// Handle verifies and processes one gateway event
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		h.PayloadTooLarge(c, "Webhook payload exceeds size limit")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		h.Unauthorized(c, "Missing webhook signature")
		return
	}

	event, err := h.webhooks.VerifySignature(payload, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		h.Unauthorized(c, "Invalid webhook signature")
		return
	}

	result, err := h.webhooks.Process(c.Request.Context(), event)
	if err != nil {
		// The event is authentic but was not applied. A 500 makes the
		// gateway redeliver; reconciliation is idempotent so the retry is
		// safe.
		h.logger.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		h.InternalError(c, "Event processing failed")
		return
	}

	c.JSON(http.StatusOK, WebhookAck{Received: true, Outcome: result.Outcome})
}
