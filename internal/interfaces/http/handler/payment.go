package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	paymentapp "github.com/motorline/backend/internal/application/payment"
)

// PaymentHandler handles payment-related API endpoints
type PaymentHandler struct {
	BaseHandler
	orchestrator *paymentapp.Orchestrator
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(orchestrator *paymentapp.Orchestrator) *PaymentHandler {
	return &PaymentHandler{orchestrator: orchestrator}
}

// RegisterRoutes registers payment routes on the API group
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.GET("/:id", h.GetByID)
		payments.GET("/:id/history", h.GetHistory)
		payments.POST("/:id/confirm", h.Confirm)
		payments.POST("/:id/refund", h.Refund)
	}
}

// GetByID returns one payment
func (h *PaymentHandler) GetByID(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	payment, err := h.orchestrator.GetByID(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// GetHistory returns the payment's status audit trail, oldest first
func (h *PaymentHandler) GetHistory(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	history, err := h.orchestrator.GetHistory(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, history)
}

// Confirm submits a tokenized payment method for the payment's intent
func (h *PaymentHandler) Confirm(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req paymentapp.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.orchestrator.Confirm(c.Request.Context(), paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// Refund returns part or all of a succeeded payment
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	var req paymentapp.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.orchestrator.Refund(c.Request.Context(), paymentID, req, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}
