package reservation

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/shared"
)

// State is the lifecycle state of a reservation hold
type State string

const (
	StateActive   State = "ACTIVE"
	StateConsumed State = "CONSUMED"
	StateReleased State = "RELEASED"
	StateExpired  State = "EXPIRED"
)

// stateTransitions defines the allowed hold state moves. CONSUMED, RELEASED
// and EXPIRED are terminal.
var stateTransitions = map[State][]State{
	StateActive:   {StateConsumed, StateReleased, StateExpired},
	StateConsumed: {},
	StateReleased: {},
	StateExpired:  {},
}

// IsValid checks if the state is a known reservation state
func (s State) IsValid() bool {
	_, ok := stateTransitions[s]
	return ok
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// CanTransitionTo checks if the state can move to the target state
func (s State) CanTransitionTo(target State) bool {
	for _, t := range stateTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the hold can no longer change state
func (s State) IsTerminal() bool {
	next, ok := stateTransitions[s]
	return ok && len(next) == 0
}

// HolderType identifies what kind of owner placed the hold
type HolderType string

const (
	HolderCart    HolderType = "CART"
	HolderSession HolderType = "SESSION"
	HolderOrder   HolderType = "ORDER"
)

// IsValid checks if the holder type is known
func (h HolderType) IsValid() bool {
	switch h {
	case HolderCart, HolderSession, HolderOrder:
		return true
	}
	return false
}

// Reservation is a bounded-time hold of vehicle stock for one holder.
// State changes are executed as conditional updates in the repository; the
// in-memory transition helpers exist for validation and tests.
type Reservation struct {
	shared.BaseAggregateRoot
	VehicleID  uuid.UUID
	HolderType HolderType
	HolderID   string
	Quantity   int
	State      State
	ExpiresAt  time.Time
	ReleasedAt *time.Time
	ConsumedAt *time.Time
	OrderID    *uuid.UUID // set when the hold is consumed into an order
}

// NewReservation creates an ACTIVE hold expiring after ttl
func NewReservation(vehicleID uuid.UUID, holderType HolderType, holderID string, quantity int, ttl time.Duration) (*Reservation, error) {
	if vehicleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VEHICLE", "Vehicle ID cannot be empty")
	}
	if !holderType.IsValid() {
		return nil, shared.NewDomainError("INVALID_HOLDER", "Unknown holder type")
	}
	if holderID == "" {
		return nil, shared.NewDomainError("INVALID_HOLDER", "Holder ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reservation quantity must be positive")
	}
	if ttl <= 0 {
		return nil, shared.NewDomainError("INVALID_TTL", "Reservation TTL must be positive")
	}

	return &Reservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		VehicleID:         vehicleID,
		HolderType:        holderType,
		HolderID:          holderID,
		Quantity:          quantity,
		State:             StateActive,
		ExpiresAt:         time.Now().Add(ttl),
	}, nil
}

// IsActive reports whether the hold is ACTIVE and not past its deadline
func (r *Reservation) IsActive(now time.Time) bool {
	return r.State == StateActive && now.Before(r.ExpiresAt)
}

// IsExpired reports whether an ACTIVE hold is past its deadline. An expired
// hold that has not yet been swept still refuses consumption.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.State == StateActive && !now.Before(r.ExpiresAt)
}

// Consume marks the hold CONSUMED into the given order
func (r *Reservation) Consume(orderID uuid.UUID, now time.Time) error {
	if r.State == StateConsumed {
		return nil // idempotent
	}
	if r.IsExpired(now) {
		return shared.NewDomainError("RESERVATION_EXPIRED", "Reservation deadline has passed")
	}
	if !r.State.CanTransitionTo(StateConsumed) {
		return shared.NewInvalidTransitionError(r.State.String(), StateConsumed.String())
	}
	r.State = StateConsumed
	r.ConsumedAt = &now
	r.OrderID = &orderID
	r.UpdatedAt = now
	return nil
}

// Release marks the hold RELEASED, returning stock to availability
func (r *Reservation) Release(now time.Time) error {
	if r.State == StateReleased || r.State == StateExpired {
		return nil // idempotent
	}
	if !r.State.CanTransitionTo(StateReleased) {
		return shared.NewInvalidTransitionError(r.State.String(), StateReleased.String())
	}
	r.State = StateReleased
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return nil
}

// Extend pushes the deadline out by ttl from now. Only ACTIVE, unexpired
// holds can be extended.
func (r *Reservation) Extend(ttl time.Duration, now time.Time) error {
	if ttl <= 0 {
		return shared.NewDomainError("INVALID_TTL", "Extension TTL must be positive")
	}
	if !r.IsActive(now) {
		return shared.NewDomainError("RESERVATION_NOT_ACTIVE", "Only active reservations can be extended")
	}
	r.ExpiresAt = now.Add(ttl)
	r.UpdatedAt = now
	return nil
}

// VehicleStock tracks per-vehicle inventory counters. The availability
// invariant is StockQuantity - ReservedQuantity - SoldQuantity >= 0 and is
// enforced by conditional updates in the repository, never by read-then-write.
type VehicleStock struct {
	shared.BaseAggregateRoot
	VehicleID        uuid.UUID
	StockQuantity    int
	ReservedQuantity int
	SoldQuantity     int
}

// Available returns the stock not currently held or sold
func (v *VehicleStock) Available() int {
	return v.StockQuantity - v.ReservedQuantity - v.SoldQuantity
}
