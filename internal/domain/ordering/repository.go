package ordering

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence port for the Order aggregate.
//
// Create persists the order, its items and the initial PENDING history row in
// one transaction. UpdateStatus persists the order row and the history row of
// an accepted transition in one transaction, guarded by the aggregate version;
// a stale version yields shared.ErrConcurrencyConflict.
type Repository interface {
	Create(ctx context.Context, order *Order, initial *OrderStatusHistory) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	UpdateStatus(ctx context.Context, change *StatusChange) error
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status OrderPaymentStatus) error
	FindHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error)
	GenerateOrderNumber(ctx context.Context) (string, error)
}
