package payment

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatusHistory is an append-only record of one accepted payment
// status transition. EventID carries the gateway event id for webhook-driven
// transitions and backs the webhook idempotence check.
type PaymentStatusHistory struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	FromStatus *PaymentStatus
	ToStatus   PaymentStatus
	Actor      string
	Reason     string
	EventID    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// NewPaymentStatusHistory creates a history row for a transition
func NewPaymentStatusHistory(paymentID uuid.UUID, from *PaymentStatus, to PaymentStatus, actor, reason string) *PaymentStatusHistory {
	var fromCopy *PaymentStatus
	if from != nil {
		f := *from
		fromCopy = &f
	}
	return &PaymentStatusHistory{
		ID:         uuid.New(),
		PaymentID:  paymentID,
		FromStatus: fromCopy,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
}

// NewInitialPaymentHistory creates the row written together with the payment
func NewInitialPaymentHistory(paymentID uuid.UUID, actor string) *PaymentStatusHistory {
	return NewPaymentStatusHistory(paymentID, nil, StatusPending, actor, "payment intent created")
}

// WithEventID tags the row with the gateway event that caused it
func (h *PaymentStatusHistory) WithEventID(eventID string) *PaymentStatusHistory {
	h.EventID = eventID
	return h
}

// WithMetadata attaches free-form audit metadata and returns the row
func (h *PaymentStatusHistory) WithMetadata(md map[string]string) *PaymentStatusHistory {
	h.Metadata = md
	return h
}
