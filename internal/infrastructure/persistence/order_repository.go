package persistence

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/ordering"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const orderNumberCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GormOrderRepository implements ordering.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: tx}
}

// Create persists the order, its items and the initial history row in one
// transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *ordering.Order, initial *ordering.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.OrderModelFromDomain(order)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		for i := range order.Items {
			if err := tx.Create(models.OrderItemModelFromDomain(&order.Items[i])).Error; err != nil {
				return err
			}
		}
		if initial != nil {
			if err := tx.Create(models.OrderStatusHistoryModelFromDomain(initial)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordering.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &model)
}

// FindByOrderNumber finds an order by its human-facing number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*ordering.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &model)
}

func (r *GormOrderRepository) hydrate(ctx context.Context, model *models.OrderModel) (*ordering.Order, error) {
	order, err := model.ToDomain()
	if err != nil {
		return nil, err
	}

	var itemModels []models.OrderItemModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", model.ID).
		Order("created_at ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}
	order.Items = make([]ordering.OrderItem, len(itemModels))
	for i := range itemModels {
		order.Items[i] = itemModels[i].ToDomain()
	}
	return order, nil
}

// UpdateStatus persists an accepted transition: the order row guarded by its
// version plus exactly one history row, in one transaction. A stale version
// yields shared.ErrConcurrencyConflict.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, change *ordering.StatusChange) error {
	order := change.Order
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := order.Version
		order.Version++

		result := tx.Model(&models.OrderModel{}).
			Where("id = ? AND version = ?", order.ID, currentVersion).
			Updates(map[string]any{
				"status":               order.Status.String(),
				"payment_status":       string(order.PaymentStatus),
				"fulfillment_status":   string(order.FulfillmentStatus),
				"actual_delivery_date": order.ActualDeliveryDate,
				"cancel_reason":        order.CancelReason,
				"version":              order.Version,
				"updated_at":           order.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			order.Version = currentVersion
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		return tx.Create(models.OrderStatusHistoryModelFromDomain(change.History)).Error
	})
}

// UpdatePaymentStatus records the summarized payment position of the order.
// It does not touch the lifecycle status or the version.
func (r *GormOrderRepository) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status ordering.OrderPaymentStatus) error {
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"payment_status": string(status),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindHistory returns the order's audit trail in chronological order
func (r *GormOrderRepository) FindHistory(ctx context.Context, orderID uuid.UUID) ([]ordering.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistoryModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ordering.OrderStatusHistory, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// GenerateOrderNumber produces a unique ORD-YYYYMMDD-XXXXXX number. The
// random suffix keeps numbers unguessable; the unique index on order_number
// catches the rare collision, retried here.
func (r *GormOrderRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 6)
		raw := make([]byte, 6)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		for i, b := range raw {
			suffix[i] = orderNumberCharset[int(b)%len(orderNumberCharset)]
		}
		number := fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)

		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
			Where("order_number = ?", number).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique order number")
}
