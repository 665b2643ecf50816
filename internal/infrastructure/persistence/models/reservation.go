package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/reservation"
)

// ReservationModel is the persistence model for stock holds
type ReservationModel struct {
	AggregateModel
	VehicleID  uuid.UUID `gorm:"type:uuid;not null;index"`
	HolderType string    `gorm:"type:varchar(20);not null;index:idx_reservations_holder"`
	HolderID   string    `gorm:"type:varchar(100);not null;index:idx_reservations_holder"`
	Quantity   int       `gorm:"not null"`
	State      string    `gorm:"type:varchar(20);not null;index"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	ReleasedAt *time.Time
	ConsumedAt *time.Time
	OrderID    *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName specifies the table name
func (ReservationModel) TableName() string {
	return "reservations"
}

// VehicleStockModel is the persistence model for per-vehicle stock counters
type VehicleStockModel struct {
	AggregateModel
	VehicleID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	StockQuantity    int       `gorm:"not null"`
	ReservedQuantity int       `gorm:"not null;default:0"`
	SoldQuantity     int       `gorm:"not null;default:0"`
}

// TableName specifies the table name
func (VehicleStockModel) TableName() string {
	return "vehicle_stock"
}

// ToDomain converts ReservationModel to the domain Reservation
func (m *ReservationModel) ToDomain() *reservation.Reservation {
	return &reservation.Reservation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		VehicleID:         m.VehicleID,
		HolderType:        reservation.HolderType(m.HolderType),
		HolderID:          m.HolderID,
		Quantity:          m.Quantity,
		State:             reservation.State(m.State),
		ExpiresAt:         m.ExpiresAt,
		ReleasedAt:        m.ReleasedAt,
		ConsumedAt:        m.ConsumedAt,
		OrderID:           m.OrderID,
	}
}

// ReservationModelFromDomain converts a domain Reservation to its model
func ReservationModelFromDomain(r *reservation.Reservation) *ReservationModel {
	m := &ReservationModel{
		VehicleID:  r.VehicleID,
		HolderType: string(r.HolderType),
		HolderID:   r.HolderID,
		Quantity:   r.Quantity,
		State:      r.State.String(),
		ExpiresAt:  r.ExpiresAt,
		ReleasedAt: r.ReleasedAt,
		ConsumedAt: r.ConsumedAt,
		OrderID:    r.OrderID,
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// ToDomain converts VehicleStockModel to the domain VehicleStock
func (m *VehicleStockModel) ToDomain() *reservation.VehicleStock {
	return &reservation.VehicleStock{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		VehicleID:         m.VehicleID,
		StockQuantity:     m.StockQuantity,
		ReservedQuantity:  m.ReservedQuantity,
		SoldQuantity:      m.SoldQuantity,
	}
}
