package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/reservation"
	"github.com/motorline/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Manager handles the reservation lifecycle: acquiring bounded-time holds,
// extending them, consuming them into orders and returning them to
// availability. All stock arithmetic happens inside the repository's
// conditional updates; the manager sequences the calls and logs outcomes.
type Manager struct {
	repo   reservation.Repository
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager creates a new reservation Manager. ttl is the hold lifetime
// applied to new and extended reservations.
func NewManager(repo reservation.Repository, ttl time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire places a hold on vehicle stock for the given holder. Fails with
// shared.ErrInsufficientInventory when availability is too low; the check and
// the reservation write are one atomic operation.
func (m *Manager) Acquire(ctx context.Context, req AcquireRequest) (*ReservationResponse, error) {
	hold, err := reservation.NewReservation(
		req.VehicleID,
		reservation.HolderType(req.HolderType),
		req.HolderID,
		req.Quantity,
		m.ttl,
	)
	if err != nil {
		return nil, err
	}

	if err := m.repo.CreateWithHold(ctx, hold); err != nil {
		if errors.Is(err, shared.ErrInsufficientInventory) {
			m.logger.Info("reservation rejected, insufficient availability",
				zap.String("vehicle_id", req.VehicleID.String()),
				zap.Int("quantity", req.Quantity),
			)
		}
		return nil, err
	}

	m.logger.Info("reservation acquired",
		zap.String("reservation_id", hold.ID.String()),
		zap.String("vehicle_id", hold.VehicleID.String()),
		zap.String("holder", req.HolderType+":"+req.HolderID),
		zap.Int("quantity", hold.Quantity),
		zap.Time("expires_at", hold.ExpiresAt),
	)

	resp := ToReservationResponse(hold)
	return &resp, nil
}

// Extend pushes an active hold's deadline out by the configured TTL from now.
// A hold that is missing, settled or already past its deadline reads the same
// to the caller: there is no active hold to extend.
func (m *Manager) Extend(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	extended, err := m.repo.ExtendActive(ctx, reservationID, m.ttl, time.Now())
	if err != nil {
		return nil, err
	}
	if !extended {
		return nil, shared.ErrNotFound
	}

	hold, err := m.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	resp := ToReservationResponse(hold)
	return &resp, nil
}

// Consume finalizes a hold into an order, moving its quantity from reserved
// to sold. Consuming an already consumed hold is a no-op so order creation
// can be retried safely.
func (m *Manager) Consume(ctx context.Context, reservationID, orderID uuid.UUID) error {
	applied, err := m.repo.Consume(ctx, reservationID, orderID, time.Now())
	if err != nil {
		return err
	}
	if !applied {
		m.logger.Debug("reservation already consumed",
			zap.String("reservation_id", reservationID.String()),
		)
		return nil
	}

	m.logger.Info("reservation consumed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("order_id", orderID.String()),
	)
	return nil
}

// Release returns a hold's quantity to availability. Releasing a hold that is
// already RELEASED or EXPIRED is a no-op.
func (m *Manager) Release(ctx context.Context, reservationID uuid.UUID) error {
	applied, err := m.repo.Release(ctx, reservationID, time.Now())
	if err != nil {
		return err
	}
	if applied {
		m.logger.Info("reservation released",
			zap.String("reservation_id", reservationID.String()),
		)
	}
	return nil
}

// ReleaseByHolder releases every active hold owned by the given holder.
// Used when a cart is abandoned or an order is cancelled. One bad row never
// blocks the rest, but the first failure is still reported so the caller
// knows to re-invoke; failed holds stay ACTIVE and are picked up again.
func (m *Manager) ReleaseByHolder(ctx context.Context, holderType reservation.HolderType, holderID string) (int, error) {
	holds, err := m.repo.FindActiveByHolder(ctx, holderType, holderID)
	if err != nil {
		return 0, err
	}

	released := 0
	var firstErr error
	for _, hold := range holds {
		applied, err := m.repo.Release(ctx, hold.ID, time.Now())
		if err != nil {
			m.logger.Error("failed to release reservation",
				zap.String("reservation_id", hold.ID.String()),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if applied {
			released++
		}
	}

	if released > 0 {
		m.logger.Info("released reservations for holder",
			zap.String("holder", string(holderType)+":"+holderID),
			zap.Int("released", released),
		)
	}
	return released, firstErr
}

// SweepExpired expires every active hold past its deadline and returns the
// held stock to availability. Called periodically by the scheduler.
func (m *Manager) SweepExpired(ctx context.Context) (*SweepStats, error) {
	stats := &SweepStats{ProcessedAt: time.Now()}

	swept, err := m.repo.SweepExpired(ctx, stats.ProcessedAt)
	if err != nil {
		m.logger.Error("reservation sweep failed", zap.Error(err))
		return nil, err
	}
	stats.Swept = swept

	if swept > 0 {
		m.logger.Info("expired reservations swept", zap.Int64("count", swept))
	} else {
		m.logger.Debug("no expired reservations found")
	}
	return stats, nil
}

// GetByID returns one reservation
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	hold, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToReservationResponse(hold)
	return &resp, nil
}

// SetStock sets a vehicle's on-hand quantity, creating the stock row on first
// use. Reserved and sold counters are never touched here.
func (m *Manager) SetStock(ctx context.Context, vehicleID uuid.UUID, req SetStockRequest) (*StockResponse, error) {
	if err := m.repo.UpsertStock(ctx, vehicleID, req.StockQuantity); err != nil {
		return nil, err
	}
	m.logger.Info("vehicle stock set",
		zap.String("vehicle_id", vehicleID.String()),
		zap.Int("stock_quantity", req.StockQuantity),
	)
	return m.GetStock(ctx, vehicleID)
}

// GetStock returns the stock counters for a vehicle
func (m *Manager) GetStock(ctx context.Context, vehicleID uuid.UUID) (*StockResponse, error) {
	stock, err := m.repo.FindStock(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}
