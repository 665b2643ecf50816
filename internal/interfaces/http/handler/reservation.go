package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reservationapp "github.com/motorline/backend/internal/application/reservation"
)

// ReservationHandler handles reservation and vehicle stock API endpoints
type ReservationHandler struct {
	BaseHandler
	manager *reservationapp.Manager
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(manager *reservationapp.Manager) *ReservationHandler {
	return &ReservationHandler{manager: manager}
}

// RegisterRoutes registers reservation routes on the API group
func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reservations := rg.Group("/reservations")
	{
		reservations.POST("", h.Acquire)
		reservations.GET("/:id", h.GetByID)
		reservations.POST("/:id/extend", h.Extend)
		reservations.POST("/:id/release", h.Release)
	}

	stock := rg.Group("/vehicles/:vehicle_id/stock")
	{
		stock.PUT("", h.SetStock)
		stock.GET("", h.GetStock)
	}
}

// Acquire places a bounded-time hold on vehicle stock
func (h *ReservationHandler) Acquire(c *gin.Context) {
	var req reservationapp.AcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	hold, err := h.manager.Acquire(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, hold)
}

// GetByID returns one reservation
func (h *ReservationHandler) GetByID(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	hold, err := h.manager.GetByID(c.Request.Context(), reservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, hold)
}

// Extend pushes an active reservation's deadline out by a fresh TTL
func (h *ReservationHandler) Extend(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	hold, err := h.manager.Extend(c.Request.Context(), reservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, hold)
}

// Release returns a hold's stock to availability. Releasing an already
// settled reservation succeeds without effect.
func (h *ReservationHandler) Release(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	if err := h.manager.Release(c.Request.Context(), reservationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// SetStock sets a vehicle's on-hand stock quantity
func (h *ReservationHandler) SetStock(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("vehicle_id"))
	if err != nil {
		h.BadRequest(c, "Invalid vehicle ID format")
		return
	}

	var req reservationapp.SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stock, err := h.manager.SetStock(c.Request.Context(), vehicleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// GetStock returns a vehicle's stock counters
func (h *ReservationHandler) GetStock(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("vehicle_id"))
	if err != nil {
		h.BadRequest(c, "Invalid vehicle ID format")
		return
	}

	stock, err := h.manager.GetStock(c.Request.Context(), vehicleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}
