package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	IntentID       string          `json:"intent_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	FailureCode    string          `json:"failure_code,omitempty"`
	FailureMessage string          `json:"failure_message,omitempty"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ToPaymentResponse converts a domain payment to a response DTO
func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		IntentID:       p.IntentID,
		Amount:         p.Amount,
		Currency:       string(p.Currency),
		Status:         string(p.Status),
		FailureCode:    p.FailureCode,
		FailureMessage: p.FailureMessage,
		RefundAmount:   p.RefundAmount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ConfirmRequest represents a request to confirm a payment with a tokenized
// payment method
type ConfirmRequest struct {
	MethodRef string `json:"method_ref" binding:"required,min=1,max=200"`
}

// RefundRequest represents a request to refund part or all of a payment
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"max=500"`
}

// ReconcileResult describes the outcome of processing one gateway event
type ReconcileResult struct {
	EventID   string `json:"event_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Applied   bool   `json:"applied"`
	Outcome   string `json:"outcome"`
}

// PaymentHistoryResponse represents one audit row of a payment
type PaymentHistoryResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	EventID    string    `json:"event_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPaymentHistoryResponse converts a history row to a response DTO
func ToPaymentHistoryResponse(h *payment.PaymentStatusHistory) PaymentHistoryResponse {
	var from *string
	if h.FromStatus != nil {
		s := h.FromStatus.String()
		from = &s
	}
	return PaymentHistoryResponse{
		ID:         h.ID,
		FromStatus: from,
		ToStatus:   h.ToStatus.String(),
		Actor:      h.Actor,
		Reason:     h.Reason,
		EventID:    h.EventID,
		CreatedAt:  h.CreatedAt,
	}
}
