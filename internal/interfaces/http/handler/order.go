package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderingapp "github.com/motorline/backend/internal/application/ordering"
	paymentapp "github.com/motorline/backend/internal/application/payment"
	"github.com/motorline/backend/internal/domain/ordering"
)

// OrderHandler handles order-related API endpoints
type OrderHandler struct {
	BaseHandler
	coordinator *orderingapp.Coordinator
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(coordinator *orderingapp.Coordinator) *OrderHandler {
	return &OrderHandler{coordinator: coordinator}
}

// RegisterRoutes registers order routes on the API group
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.GET("/:id", h.GetByID)
		orders.GET("/number/:order_number", h.GetByOrderNumber)
		orders.GET("/:id/history", h.GetHistory)
		orders.GET("/:id/payments", h.ListPayments)
		orders.POST("/:id/advance", h.AdvanceStatus)
		orders.POST("/:id/fulfill", h.Fulfill)
		orders.POST("/:id/cancel", h.Cancel)
		orders.POST("/:id/confirm-payment", h.ConfirmPayment)
		orders.POST("/:id/retry-payment", h.RetryPayment)
	}
}

// getActor identifies who performed a state change for the audit trail.
// Upstream authentication injects the header; unattributed calls are
// recorded as the API itself.
func getActor(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}

// Create converts a cart snapshot into a durable order, consuming any
// referenced reservations and starting payment
func (h *OrderHandler) Create(c *gin.Context) {
	var req orderingapp.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	resp, err := h.coordinator.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetByID returns one order with its line items
func (h *OrderHandler) GetByID(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	order, err := h.coordinator.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// GetByOrderNumber returns one order looked up by its public order number
func (h *OrderHandler) GetByOrderNumber(c *gin.Context) {
	orderNumber := c.Param("order_number")
	if orderNumber == "" {
		h.BadRequest(c, "Order number is required")
		return
	}

	order, err := h.coordinator.GetByOrderNumber(c.Request.Context(), orderNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// GetHistory returns the order's status audit trail, oldest first
func (h *OrderHandler) GetHistory(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	history, err := h.coordinator.GetHistory(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, history)
}

// ListPayments returns every payment attempt for an order, newest first
func (h *OrderHandler) ListPayments(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	payments, err := h.coordinator.ListPayments(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payments)
}

// AdvanceStatus moves an order to the requested lifecycle status
func (h *OrderHandler) AdvanceStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderingapp.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	order, err := h.coordinator.AdvanceStatus(
		c.Request.Context(), orderID, ordering.OrderStatus(req.Target), getActor(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// Fulfill advances the order one fulfillment step
func (h *OrderHandler) Fulfill(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderingapp.FulfillOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	order, err := h.coordinator.FulfillOrder(c.Request.Context(), orderID, getActor(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// ConfirmPayment submits a payment method for the order's latest payment and
// applies the outcome to the order without waiting for the webhook
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req paymentapp.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.coordinator.ConfirmPayment(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// Cancel cancels an order and triggers compensation of its reservations and
// payments
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	var req orderingapp.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	order, err := h.coordinator.CancelOrder(c.Request.Context(), orderID, getActor(c), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// RetryPayment creates a fresh payment intent for a pending order whose
// earlier intent creation failed
func (h *OrderHandler) RetryPayment(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID format")
		return
	}

	payment, err := h.coordinator.RetryPaymentIntent(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}
