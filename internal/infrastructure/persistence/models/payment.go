package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for payments
type PaymentModel struct {
	AggregateModel
	OrderID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	IntentID       string          `gorm:"type:varchar(100);uniqueIndex;not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency       string          `gorm:"type:varchar(3);not null"`
	Status         string          `gorm:"type:varchar(30);not null;index"`
	MethodRef      string          `gorm:"type:varchar(200)"`
	FailureCode    string          `gorm:"type:varchar(100)"`
	FailureMessage string          `gorm:"type:varchar(500)"`
	RefundAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Metadata       JSONMap
}

// TableName specifies the table name
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentStatusHistoryModel is the append-only audit table for payment
// transitions. EventID carries the gateway event id for webhook-driven rows.
type PaymentStatusHistoryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	FromStatus *string   `gorm:"type:varchar(30)"`
	ToStatus   string    `gorm:"type:varchar(30);not null"`
	Actor      string    `gorm:"type:varchar(100);not null"`
	Reason     string    `gorm:"type:varchar(500)"`
	EventID    string    `gorm:"type:varchar(100);index"`
	Metadata   JSONMap
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (PaymentStatusHistoryModel) TableName() string {
	return "payment_status_history"
}

// ToDomain converts PaymentModel to the domain Payment
func (m *PaymentModel) ToDomain() *payment.Payment {
	return &payment.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderID:           m.OrderID,
		IntentID:          m.IntentID,
		Amount:            m.Amount,
		Currency:          valueobject.Currency(m.Currency),
		Status:            payment.PaymentStatus(m.Status),
		MethodRef:         m.MethodRef,
		FailureCode:       m.FailureCode,
		FailureMessage:    m.FailureMessage,
		RefundAmount:      m.RefundAmount,
		Metadata:          m.Metadata,
	}
}

// PaymentModelFromDomain converts a domain Payment to its persistence model
func PaymentModelFromDomain(p *payment.Payment) *PaymentModel {
	m := &PaymentModel{
		OrderID:        p.OrderID,
		IntentID:       p.IntentID,
		Amount:         p.Amount,
		Currency:       string(p.Currency),
		Status:         p.Status.String(),
		MethodRef:      p.MethodRef,
		FailureCode:    p.FailureCode,
		FailureMessage: p.FailureMessage,
		RefundAmount:   p.RefundAmount,
		Metadata:       p.Metadata,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}

// ToDomain converts PaymentStatusHistoryModel to the domain history row
func (m *PaymentStatusHistoryModel) ToDomain() payment.PaymentStatusHistory {
	var from *payment.PaymentStatus
	if m.FromStatus != nil {
		s := payment.PaymentStatus(*m.FromStatus)
		from = &s
	}
	return payment.PaymentStatusHistory{
		ID:         m.ID,
		PaymentID:  m.PaymentID,
		FromStatus: from,
		ToStatus:   payment.PaymentStatus(m.ToStatus),
		Actor:      m.Actor,
		Reason:     m.Reason,
		EventID:    m.EventID,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
	}
}

// PaymentStatusHistoryModelFromDomain converts a domain history row to its model
func PaymentStatusHistoryModelFromDomain(h *payment.PaymentStatusHistory) *PaymentStatusHistoryModel {
	var from *string
	if h.FromStatus != nil {
		s := h.FromStatus.String()
		from = &s
	}
	return &PaymentStatusHistoryModel{
		ID:         h.ID,
		PaymentID:  h.PaymentID,
		FromStatus: from,
		ToStatus:   h.ToStatus.String(),
		Actor:      h.Actor,
		Reason:     h.Reason,
		EventID:    h.EventID,
		Metadata:   h.Metadata,
		CreatedAt:  h.CreatedAt,
	}
}
