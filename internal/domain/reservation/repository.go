package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence port for reservations and vehicle stock.
//
// Every state-changing method executes its check and its write as one atomic
// statement or transaction so two concurrent callers can never both succeed
// past the availability invariant.
type Repository interface {
	// CreateWithHold inserts the reservation and increments the vehicle's
	// reserved counter in one transaction, guarded by
	// stock - reserved - sold >= quantity. Insufficient availability yields
	// shared.ErrInsufficientInventory.
	CreateWithHold(ctx context.Context, r *Reservation) error

	// Consume moves the reservation ACTIVE -> CONSUMED and shifts its
	// quantity from reserved to sold. Returns false with a nil error when the
	// reservation was already CONSUMED. Expired or otherwise closed holds
	// yield a domain error.
	Consume(ctx context.Context, reservationID, orderID uuid.UUID, now time.Time) (bool, error)

	// Release moves the reservation ACTIVE -> RELEASED and gives its quantity
	// back to availability. Returns false with a nil error when the hold was
	// already RELEASED or EXPIRED.
	Release(ctx context.Context, reservationID uuid.UUID, now time.Time) (bool, error)

	// ExtendActive pushes the deadline of an ACTIVE, unexpired hold to
	// now + ttl. Returns false when the hold was not extendable.
	ExtendActive(ctx context.Context, reservationID uuid.UUID, ttl time.Duration, now time.Time) (bool, error)

	// SweepExpired transitions every ACTIVE hold past its deadline to EXPIRED
	// and returns the reserved quantity of each to availability. Returns the
	// number of holds swept.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindActiveByHolder(ctx context.Context, holderType HolderType, holderID string) ([]Reservation, error)

	// UpsertStock creates or adjusts the stock row for a vehicle
	UpsertStock(ctx context.Context, vehicleID uuid.UUID, stockQuantity int) error
	FindStock(ctx context.Context, vehicleID uuid.UUID) (*VehicleStock, error)
}
