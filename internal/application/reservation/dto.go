package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/reservation"
)

// AcquireRequest represents a request to place a stock hold
type AcquireRequest struct {
	VehicleID  uuid.UUID `json:"vehicle_id" binding:"required"`
	HolderType string    `json:"holder_type" binding:"required,oneof=CART SESSION ORDER"`
	HolderID   string    `json:"holder_id" binding:"required,min=1,max=100"`
	Quantity   int       `json:"quantity" binding:"required,min=1"`
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID         uuid.UUID  `json:"id"`
	VehicleID  uuid.UUID  `json:"vehicle_id"`
	HolderType string     `json:"holder_type"`
	HolderID   string     `json:"holder_id"`
	Quantity   int        `json:"quantity"`
	State      string     `json:"state"`
	ExpiresAt  time.Time  `json:"expires_at"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToReservationResponse converts a domain reservation to a response DTO
func ToReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		VehicleID:  r.VehicleID,
		HolderType: string(r.HolderType),
		HolderID:   r.HolderID,
		Quantity:   r.Quantity,
		State:      string(r.State),
		ExpiresAt:  r.ExpiresAt,
		OrderID:    r.OrderID,
		CreatedAt:  r.CreatedAt,
	}
}

// SetStockRequest represents a request to set a vehicle's on-hand stock
type SetStockRequest struct {
	StockQuantity int `json:"stock_quantity" binding:"min=0"`
}

// StockResponse represents vehicle stock counters in API responses
type StockResponse struct {
	VehicleID        uuid.UUID `json:"vehicle_id"`
	StockQuantity    int       `json:"stock_quantity"`
	ReservedQuantity int       `json:"reserved_quantity"`
	SoldQuantity     int       `json:"sold_quantity"`
	Available        int       `json:"available"`
}

// ToStockResponse converts domain stock counters to a response DTO
func ToStockResponse(s *reservation.VehicleStock) StockResponse {
	return StockResponse{
		VehicleID:        s.VehicleID,
		StockQuantity:    s.StockQuantity,
		ReservedQuantity: s.ReservedQuantity,
		SoldQuantity:     s.SoldQuantity,
		Available:        s.Available(),
	}
}

// SweepStats contains statistics about one expiration sweep
type SweepStats struct {
	Swept       int64     `json:"swept"`
	ProcessedAt time.Time `json:"processed_at"`
}
