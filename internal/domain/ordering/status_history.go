package ordering

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatusHistory is an append-only record of one accepted status
// transition. Rows are never updated or deleted. The synthetic initial row
// has a nil FromStatus.
type OrderStatusHistory struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	FromStatus *OrderStatus
	ToStatus   OrderStatus
	Actor      string
	Reason     string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// NewOrderStatusHistory creates a history row for a transition
func NewOrderStatusHistory(orderID uuid.UUID, from *OrderStatus, to OrderStatus, actor, reason string) *OrderStatusHistory {
	var fromCopy *OrderStatus
	if from != nil {
		f := *from
		fromCopy = &f
	}
	return &OrderStatusHistory{
		ID:         uuid.New(),
		OrderID:    orderID,
		FromStatus: fromCopy,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}
}

// NewInitialOrderHistory creates the synthetic "created" row written together
// with the order itself.
func NewInitialOrderHistory(orderID uuid.UUID, actor string) *OrderStatusHistory {
	return NewOrderStatusHistory(orderID, nil, OrderStatusPending, actor, "order created")
}

// WithMetadata attaches free-form audit metadata and returns the row
func (h *OrderStatusHistory) WithMetadata(md map[string]string) *OrderStatusHistory {
	h.Metadata = md
	return h
}
