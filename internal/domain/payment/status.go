package payment

// PaymentStatus represents the lifecycle status of a payment
type PaymentStatus string

const (
	StatusPending           PaymentStatus = "PENDING"
	StatusProcessing        PaymentStatus = "PROCESSING"
	StatusRequiresAction    PaymentStatus = "REQUIRES_ACTION"
	StatusSucceeded         PaymentStatus = "SUCCEEDED"
	StatusFailed            PaymentStatus = "FAILED"
	StatusCancelled         PaymentStatus = "CANCELLED"
	StatusRefunded          PaymentStatus = "REFUNDED"
	StatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// paymentTransitions is the single source of truth for allowed status moves.
// SUCCEEDED keeps the refund path open; FAILED, CANCELLED and REFUNDED are
// fully closed.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:           {StatusProcessing, StatusRequiresAction, StatusSucceeded, StatusFailed, StatusCancelled},
	StatusProcessing:        {StatusRequiresAction, StatusSucceeded, StatusFailed, StatusCancelled},
	StatusRequiresAction:    {StatusProcessing, StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded:         {StatusPartiallyRefunded, StatusRefunded},
	StatusPartiallyRefunded: {StatusPartiallyRefunded, StatusRefunded},
	StatusFailed:            {},
	StatusCancelled:         {},
	StatusRefunded:          {},
}

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsFullyClosed returns true for statuses with no outgoing transitions at
// all. A fully closed payment must never be mutated again, including by
// late-arriving webhook events.
func (s PaymentStatus) IsFullyClosed() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

// IsCompleted returns true once the payment reached SUCCEEDED or any of the
// refund statuses derived from it.
func (s PaymentStatus) IsCompleted() bool {
	switch s {
	case StatusSucceeded, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// IsRefundable returns true if a refund may be requested in this status
func (s PaymentStatus) IsRefundable() bool {
	return s == StatusSucceeded || s == StatusPartiallyRefunded
}
