package persistence

import (
	"github.com/motorline/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the schema for every persistence model
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.OrderStatusHistoryModel{},
		&models.PaymentModel{},
		&models.PaymentStatusHistoryModel{},
		&models.ReservationModel{},
		&models.VehicleStockModel{},
	)
}
