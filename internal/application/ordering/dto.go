package ordering

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/ordering"
	"github.com/shopspring/decimal"
)

// CreateOrderItemInput represents one configured vehicle line in a create
// order request
type CreateOrderItemInput struct {
	ConfigurationID uuid.UUID       `json:"configuration_id" binding:"required"`
	Quantity        int             `json:"quantity" binding:"required,min=1"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"required"`
}

// CustomerInput carries purchaser contact details
type CustomerInput struct {
	FirstName string `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string `json:"last_name" binding:"required,min=1,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"max=30"`
}

// AddressInput carries the delivery address
type AddressInput struct {
	Line1      string `json:"line1" binding:"required,min=1,max=200"`
	Line2      string `json:"line2" binding:"max=200"`
	City       string `json:"city" binding:"required,min=1,max=100"`
	State      string `json:"state" binding:"required,min=1,max=100"`
	PostalCode string `json:"postal_code" binding:"required,min=1,max=20"`
	Country    string `json:"country" binding:"max=2"`
}

// TradeInInput carries optional trade-in vehicle details
type TradeInInput struct {
	Make           string          `json:"make" binding:"required,min=1,max=100"`
	Model          string          `json:"model" binding:"required,min=1,max=100"`
	Year           int             `json:"year" binding:"required,min=1950"`
	Mileage        int             `json:"mileage" binding:"min=0"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// CreateOrderRequest represents a request to convert a cart into an order
type CreateOrderRequest struct {
	UserID          *uuid.UUID             `json:"user_id"`
	GuestSessionID  string                 `json:"guest_session_id" binding:"max=100"`
	VehicleID       uuid.UUID              `json:"vehicle_id" binding:"required"`
	ConfigurationID *uuid.UUID             `json:"configuration_id"`
	DealerID        *uuid.UUID             `json:"dealer_id"`
	Items           []CreateOrderItemInput `json:"items" binding:"required,min=1,dive"`
	Customer        CustomerInput          `json:"customer" binding:"required"`
	DeliveryAddress AddressInput           `json:"delivery_address" binding:"required"`
	TradeIn         *TradeInInput          `json:"trade_in"`
	Notes           string                 `json:"notes" binding:"max=2000"`
	Discount        decimal.Decimal        `json:"discount"`
	TaxRate         decimal.Decimal        `json:"tax_rate"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Fees            decimal.Decimal        `json:"fees"`
	ReservationIDs  []uuid.UUID            `json:"reservation_ids"`
}

// AdvanceStatusRequest represents a request to move an order along its
// lifecycle
type AdvanceStatusRequest struct {
	Target string `json:"target" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

// FulfillOrderRequest represents a request to advance an order one
// fulfillment step
type FulfillOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CancelOrderRequest represents a request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// OrderItemResponse represents one line item in API responses
type OrderItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ConfigurationID uuid.UUID       `json:"configuration_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID                uuid.UUID                 `json:"id"`
	OrderNumber       string                    `json:"order_number"`
	UserID            *uuid.UUID                `json:"user_id,omitempty"`
	GuestSessionID    string                    `json:"guest_session_id,omitempty"`
	VehicleID         uuid.UUID                 `json:"vehicle_id"`
	DealerID          *uuid.UUID                `json:"dealer_id,omitempty"`
	Items             []OrderItemResponse       `json:"items"`
	Status            string                    `json:"status"`
	PaymentStatus     string                    `json:"payment_status"`
	FulfillmentStatus string                    `json:"fulfillment_status"`
	Pricing           ordering.PricingBreakdown `json:"pricing"`
	Currency          string                    `json:"currency"`
	Customer          ordering.CustomerInfo     `json:"customer"`
	Notes             string                    `json:"notes,omitempty"`
	CancelReason      string                    `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// ToOrderResponse converts a domain order to a response DTO
func ToOrderResponse(o *ordering.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:              item.ID,
			ConfigurationID: item.ConfigurationID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalPrice:      item.TotalPrice,
		})
	}
	return OrderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		GuestSessionID:    o.GuestSessionID,
		VehicleID:         o.VehicleID,
		DealerID:          o.DealerID,
		Items:             items,
		Status:            o.Status.String(),
		PaymentStatus:     string(o.PaymentStatus),
		FulfillmentStatus: string(o.FulfillmentStatus),
		Pricing:           o.Pricing,
		Currency:          string(o.Currency),
		Customer:          o.Customer,
		Notes:             o.Notes,
		CancelReason:      o.CancelReason,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// CreateOrderResponse is the result of order creation. The order itself is
// durable once returned; PaymentError is set when the payment intent could
// not be created and must be retried separately.
type CreateOrderResponse struct {
	Order        OrderResponse `json:"order"`
	PaymentID    *uuid.UUID    `json:"payment_id,omitempty"`
	PaymentError string        `json:"payment_error,omitempty"`
}

// OrderHistoryResponse represents one audit row of an order
type OrderHistoryResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToOrderHistoryResponse converts a history row to a response DTO
func ToOrderHistoryResponse(h *ordering.OrderStatusHistory) OrderHistoryResponse {
	var from *string
	if h.FromStatus != nil {
		s := h.FromStatus.String()
		from = &s
	}
	return OrderHistoryResponse{
		ID:         h.ID,
		FromStatus: from,
		ToStatus:   h.ToStatus.String(),
		Actor:      h.Actor,
		Reason:     h.Reason,
		CreatedAt:  h.CreatedAt,
	}
}
