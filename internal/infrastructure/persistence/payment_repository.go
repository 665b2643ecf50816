package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements payment.Repository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx}
}

// Create persists the payment and its initial history row in one transaction.
// A duplicate intent id yields shared.ErrAlreadyExists.
func (r *GormPaymentRepository) Create(ctx context.Context, p *payment.Payment, initial *payment.PaymentStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.PaymentModelFromDomain(p)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		if initial != nil {
			return tx.Create(models.PaymentStatusHistoryModelFromDomain(initial)).Error
		}
		return nil
	})
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntentID finds a payment by its gateway intent reference
func (r *GormPaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "intent_id = ?", intentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderID returns every payment attempt for an order, oldest first
func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	out := make([]payment.Payment, len(paymentModels))
	for i := range paymentModels {
		out[i] = *paymentModels[i].ToDomain()
	}
	return out, nil
}

// FindLatestByOrderID returns the most recent payment attempt for an order
func (r *GormPaymentRepository) FindLatestByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists the payment row guarded by its version plus the history row
// of the transition, in one transaction. A stale version yields
// shared.ErrConcurrencyConflict. history may be nil for non-transition
// updates such as storing the method reference.
func (r *GormPaymentRepository) Update(ctx context.Context, p *payment.Payment, history *payment.PaymentStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := p.Version
		p.Version++

		result := tx.Model(&models.PaymentModel{}).
			Where("id = ? AND version = ?", p.ID, currentVersion).
			Updates(map[string]any{
				"status":          p.Status.String(),
				"method_ref":      p.MethodRef,
				"failure_code":    p.FailureCode,
				"failure_message": p.FailureMessage,
				"refund_amount":   p.RefundAmount,
				"version":         p.Version,
				"updated_at":      p.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			p.Version = currentVersion
			var count int64
			if err := tx.Model(&models.PaymentModel{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		if history != nil {
			return tx.Create(models.PaymentStatusHistoryModelFromDomain(history)).Error
		}
		return nil
	})
}

// FindHistory returns the payment's audit trail in chronological order
func (r *GormPaymentRepository) FindHistory(ctx context.Context, paymentID uuid.UUID) ([]payment.PaymentStatusHistory, error) {
	var rows []models.PaymentStatusHistoryModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]payment.PaymentStatusHistory, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// HistoryHasEvent reports whether a gateway event id was already recorded for
// the payment. This is the authoritative webhook dedup check.
func (r *GormPaymentRepository) HistoryHasEvent(ctx context.Context, paymentID uuid.UUID, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentStatusHistoryModel{}).
		Where("payment_id = ? AND event_id = ?", paymentID, eventID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
