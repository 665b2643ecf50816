package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Payment is the aggregate root for one charge attempt against an order.
// An order may accumulate several payments over time (retries); each payment
// maps to exactly one gateway intent.
type Payment struct {
	shared.BaseAggregateRoot
	OrderID        uuid.UUID
	IntentID       string // gateway payment-intent reference, unique
	Amount         decimal.Decimal
	Currency       valueobject.Currency
	Status         PaymentStatus
	MethodRef      string // tokenized payment-method descriptor, never raw credentials
	FailureCode    string
	FailureMessage string
	RefundAmount   decimal.Decimal
	Metadata       map[string]string
}

// NewPayment creates a PENDING payment referencing a gateway intent
func NewPayment(orderID uuid.UUID, intentID string, amount valueobject.Money, metadata map[string]string) (*Payment, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if intentID == "" {
		return nil, shared.NewDomainError("INVALID_INTENT", "Gateway intent ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		IntentID:          intentID,
		Amount:            amount.Amount(),
		Currency:          amount.Currency(),
		Status:            StatusPending,
		RefundAmount:      decimal.Zero,
		Metadata:          metadata,
	}, nil
}

// ApplyStatus moves the payment to target if the transition table allows it,
// returning the history row to persist with the change. Fully closed
// payments reject every mutation with a TerminalStateError.
func (p *Payment) ApplyStatus(target PaymentStatus, actor, reason string) (*PaymentStatusHistory, error) {
	current := p.Status

	if current.IsFullyClosed() {
		return nil, shared.NewTerminalStateError(current.String())
	}
	if !current.CanTransitionTo(target) {
		return nil, shared.NewInvalidTransitionError(current.String(), target.String())
	}

	p.Status = target
	p.UpdatedAt = time.Now()

	return NewPaymentStatusHistory(p.ID, &current, target, actor, reason), nil
}

// RecordFailure stores the gateway decline details. Only meaningful together
// with a transition to FAILED.
func (p *Payment) RecordFailure(code, message string) {
	p.FailureCode = code
	p.FailureMessage = message
	p.UpdatedAt = time.Now()
}

// SetMethodRef stores the tokenized payment-method descriptor
func (p *Payment) SetMethodRef(methodRef string) {
	p.MethodRef = methodRef
	p.UpdatedAt = time.Now()
}

// RemainingRefundable returns the amount still available for refund
func (p *Payment) RemainingRefundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundAmount)
}

// AddRefund applies a refund of the given amount, moving the payment to
// REFUNDED when fully refunded and PARTIALLY_REFUNDED otherwise. RefundAmount
// only ever grows and never exceeds Amount.
func (p *Payment) AddRefund(amount decimal.Decimal, actor, reason string) (*PaymentStatusHistory, error) {
	if !p.Status.IsRefundable() {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment is not in a refundable state")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Refund amount must be positive")
	}
	if amount.GreaterThan(p.RemainingRefundable()) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Refund amount exceeds remaining refundable amount")
	}

	target := StatusPartiallyRefunded
	if p.RefundAmount.Add(amount).Equal(p.Amount) {
		target = StatusRefunded
	}

	history, err := p.ApplyStatus(target, actor, reason)
	if err != nil {
		return nil, err
	}
	p.RefundAmount = p.RefundAmount.Add(amount)
	return history, nil
}

// IsFullyClosed reports whether the payment reached a fully closed status
func (p *Payment) IsFullyClosed() bool {
	return p.Status.IsFullyClosed()
}
