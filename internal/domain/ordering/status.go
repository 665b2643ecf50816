package ordering

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions is the single source of truth for allowed status moves.
// Statuses mapping to an empty set are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no outgoing transitions exist for the status
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// AllowedTransitions returns the statuses reachable from s
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// OrderPaymentStatus summarizes the payment position of an order
type OrderPaymentStatus string

const (
	OrderPaymentUnpaid            OrderPaymentStatus = "UNPAID"
	OrderPaymentPaid              OrderPaymentStatus = "PAID"
	OrderPaymentRefunded          OrderPaymentStatus = "REFUNDED"
	OrderPaymentPartiallyRefunded OrderPaymentStatus = "PARTIALLY_REFUNDED"
)

// FulfillmentStatus tracks physical delivery progress independently of the
// order lifecycle status
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "UNFULFILLED"
	FulfillmentInProgress  FulfillmentStatus = "IN_PROGRESS"
	FulfillmentShipped     FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered   FulfillmentStatus = "DELIVERED"
)
