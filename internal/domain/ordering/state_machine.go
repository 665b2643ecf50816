package ordering

import (
	"time"

	"github.com/motorline/backend/internal/domain/shared"
)

// StatusChange describes one accepted transition: the mutated order plus the
// history row that must be persisted with it in the same transaction.
type StatusChange struct {
	Order   *Order
	History *OrderStatusHistory
}

// StateMachine validates and applies order status transitions against the
// transition table. It has no side effects beyond the order aggregate and the
// produced history row; cross-component compensation belongs to the caller.
type StateMachine struct{}

// NewStateMachine creates an order state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

// Apply moves the order to target if the transition table allows it.
// On DELIVERED the actual delivery date is stamped if unset. Exactly one
// history row is produced per accepted transition.
func (m *StateMachine) Apply(order *Order, target OrderStatus, actor, reason string) (*StatusChange, error) {
	current := order.Status

	if current.IsTerminal() {
		return nil, shared.NewTerminalStateError(current.String())
	}
	if !current.CanTransitionTo(target) {
		return nil, shared.NewInvalidTransitionError(current.String(), target.String())
	}

	now := time.Now()
	order.Status = target
	order.UpdatedAt = now

	switch target {
	case OrderStatusDelivered:
		if order.ActualDeliveryDate == nil {
			order.ActualDeliveryDate = &now
		}
		order.FulfillmentStatus = FulfillmentDelivered
	case OrderStatusShipped:
		order.FulfillmentStatus = FulfillmentShipped
	case OrderStatusProcessing:
		order.FulfillmentStatus = FulfillmentInProgress
	case OrderStatusCancelled:
		order.CancelReason = reason
	}

	history := NewOrderStatusHistory(order.ID, &current, target, actor, reason)
	return &StatusChange{Order: order, History: history}, nil
}
