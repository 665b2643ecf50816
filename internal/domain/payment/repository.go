package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence port for the Payment aggregate.
//
// Create persists the payment and its initial history row in one
// transaction. Update persists the payment row and a history row atomically,
// guarded by the aggregate version; a stale version yields
// shared.ErrConcurrencyConflict. HistoryHasEvent backs webhook idempotence.
type Repository interface {
	Create(ctx context.Context, p *Payment, initial *PaymentStatusHistory) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]Payment, error)
	FindLatestByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Update(ctx context.Context, p *Payment, history *PaymentStatusHistory) error
	FindHistory(ctx context.Context, paymentID uuid.UUID) ([]PaymentStatusHistory, error)
	HistoryHasEvent(ctx context.Context, paymentID uuid.UUID, eventID string) (bool, error)
}
