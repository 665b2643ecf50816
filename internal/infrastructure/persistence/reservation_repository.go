package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/reservation"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReservationRepository implements reservation.Repository using GORM.
//
// Stock arithmetic always runs as conditional UPDATE statements whose WHERE
// clause re-checks the invariant, so concurrent callers serialize on the
// database row instead of racing a read-then-write.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormReservationRepository) WithTx(tx *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: tx}
}

// CreateWithHold reserves stock and inserts the reservation in one
// transaction. The guard stock - reserved - sold >= quantity is part of the
// UPDATE itself; zero affected rows means no availability.
func (r *GormReservationRepository) CreateWithHold(ctx context.Context, res *reservation.Reservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.VehicleStockModel{}).
			Where("vehicle_id = ? AND stock_quantity - reserved_quantity - sold_quantity >= ?",
				res.VehicleID, res.Quantity).
			Updates(map[string]any{
				"reserved_quantity": gorm.Expr("reserved_quantity + ?", res.Quantity),
				"updated_at":        time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.VehicleStockModel{}).
				Where("vehicle_id = ?", res.VehicleID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrInsufficientInventory
		}

		return tx.Create(models.ReservationModelFromDomain(res)).Error
	})
}

// Consume moves an ACTIVE, unexpired hold to CONSUMED and shifts its quantity
// from reserved to sold. Returns false with a nil error when the hold was
// already CONSUMED.
func (r *GormReservationRepository) Consume(ctx context.Context, reservationID, orderID uuid.UUID, now time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ReservationModel{}).
			Where("id = ? AND state = ? AND expires_at > ?", reservationID, reservation.StateActive, now).
			Updates(map[string]any{
				"state":       reservation.StateConsumed,
				"consumed_at": now,
				"order_id":    orderID,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.classifyMiss(tx, reservationID, reservation.StateConsumed, now)
		}

		var model models.ReservationModel
		if err := tx.First(&model, "id = ?", reservationID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.VehicleStockModel{}).
			Where("vehicle_id = ?", model.VehicleID).
			Updates(map[string]any{
				"reserved_quantity": gorm.Expr("reserved_quantity - ?", model.Quantity),
				"sold_quantity":     gorm.Expr("sold_quantity + ?", model.Quantity),
				"updated_at":        now,
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return false, nil
		}
		return false, err
	}
	return applied, nil
}

// Release moves an ACTIVE hold to RELEASED and returns its quantity to
// availability. Returns false with a nil error when the hold was already
// RELEASED or EXPIRED.
func (r *GormReservationRepository) Release(ctx context.Context, reservationID uuid.UUID, now time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ReservationModel{}).
			Where("id = ? AND state = ?", reservationID, reservation.StateActive).
			Updates(map[string]any{
				"state":       reservation.StateReleased,
				"released_at": now,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return r.classifyMiss(tx, reservationID, reservation.StateReleased, now)
		}

		var model models.ReservationModel
		if err := tx.First(&model, "id = ?", reservationID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.VehicleStockModel{}).
			Where("vehicle_id = ?", model.VehicleID).
			Updates(map[string]any{
				"reserved_quantity": gorm.Expr("reserved_quantity - ?", model.Quantity),
				"updated_at":        now,
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return false, nil
		}
		return false, err
	}
	return applied, nil
}

// errAlreadySettled signals an idempotent no-op inside a transaction so the
// transaction rolls back cleanly without surfacing an error to the caller.
var errAlreadySettled = errors.New("reservation already settled")

// classifyMiss explains why a conditional state update matched no rows
func (r *GormReservationRepository) classifyMiss(tx *gorm.DB, reservationID uuid.UUID, target reservation.State, now time.Time) error {
	var model models.ReservationModel
	if err := tx.First(&model, "id = ?", reservationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound
		}
		return err
	}

	state := reservation.State(model.State)
	switch target {
	case reservation.StateConsumed:
		if state == reservation.StateConsumed {
			return errAlreadySettled
		}
		if state == reservation.StateActive && !now.Before(model.ExpiresAt) {
			return shared.NewDomainError("RESERVATION_EXPIRED", "Reservation deadline has passed")
		}
	case reservation.StateReleased:
		if state == reservation.StateReleased || state == reservation.StateExpired {
			return errAlreadySettled
		}
	}
	return shared.NewInvalidTransitionError(state.String(), target.String())
}

// ExtendActive pushes the deadline of an ACTIVE, unexpired hold to now + ttl
func (r *GormReservationRepository) ExtendActive(ctx context.Context, reservationID uuid.UUID, ttl time.Duration, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ReservationModel{}).
		Where("id = ? AND state = ? AND expires_at > ?", reservationID, reservation.StateActive, now).
		Updates(map[string]any{
			"expires_at": now.Add(ttl),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SweepExpired expires every ACTIVE hold past its deadline, returning held
// stock to availability. Each hold is settled with its own conditional
// update, so a concurrent Consume or Release on the same hold wins or loses
// atomically per row.
func (r *GormReservationRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var candidates []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at <= ?", reservation.StateActive, now).
		Find(&candidates).Error; err != nil {
		return 0, err
	}

	var swept int64
	for i := range candidates {
		candidate := candidates[i]
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&models.ReservationModel{}).
				Where("id = ? AND state = ? AND expires_at <= ?", candidate.ID, reservation.StateActive, now).
				Updates(map[string]any{
					"state":      reservation.StateExpired,
					"version":    gorm.Expr("version + 1"),
					"updated_at": now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return nil // settled by a concurrent caller
			}

			if err := tx.Model(&models.VehicleStockModel{}).
				Where("vehicle_id = ?", candidate.VehicleID).
				Updates(map[string]any{
					"reserved_quantity": gorm.Expr("reserved_quantity - ?", candidate.Quantity),
					"updated_at":        now,
				}).Error; err != nil {
				return err
			}
			swept++
			return nil
		})
		if err != nil {
			return swept, err
		}
	}
	return swept, nil
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	var model models.ReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByHolder returns the holder's ACTIVE, unexpired holds
func (r *GormReservationRepository) FindActiveByHolder(ctx context.Context, holderType reservation.HolderType, holderID string) ([]reservation.Reservation, error) {
	var reservationModels []models.ReservationModel
	if err := r.db.WithContext(ctx).
		Where("holder_type = ? AND holder_id = ? AND state = ? AND expires_at > ?",
			holderType, holderID, reservation.StateActive, time.Now()).
		Order("created_at ASC").
		Find(&reservationModels).Error; err != nil {
		return nil, err
	}
	out := make([]reservation.Reservation, len(reservationModels))
	for i := range reservationModels {
		out[i] = *reservationModels[i].ToDomain()
	}
	return out, nil
}

// UpsertStock creates or adjusts the stock row for a vehicle
func (r *GormReservationRepository) UpsertStock(ctx context.Context, vehicleID uuid.UUID, stockQuantity int) error {
	now := time.Now()
	model := &models.VehicleStockModel{
		VehicleID:     vehicleID,
		StockQuantity: stockQuantity,
	}
	model.ID = uuid.New()
	model.CreatedAt = now
	model.UpdatedAt = now
	model.Version = 1

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vehicle_id"}},
		DoUpdates: clause.Assignments(map[string]any{"stock_quantity": stockQuantity, "updated_at": now}),
	}).Create(model).Error
}

// FindStock returns the stock counters for a vehicle
func (r *GormReservationRepository) FindStock(ctx context.Context, vehicleID uuid.UUID) (*reservation.VehicleStock, error) {
	var model models.VehicleStockModel
	if err := r.db.WithContext(ctx).First(&model, "vehicle_id = ?", vehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
