package ordering

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CustomerInfo holds the purchaser contact details captured at checkout
type CustomerInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Validate checks the required contact fields
func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return shared.NewDomainError("INVALID_CUSTOMER", "Customer email is required")
	}
	return nil
}

// TradeInInfo describes an optional trade-in vehicle attached to the order
type TradeInInfo struct {
	Make           string          `json:"make"`
	Model          string          `json:"model"`
	Year           int             `json:"year"`
	Mileage        int             `json:"mileage"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// OrderItem represents a configured vehicle line in an order.
// Items are created together with the order and are immutable afterwards.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ConfigurationID uuid.UUID
	Quantity        int
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	CreatedAt       time.Time
}

// NewOrderItem creates an order item, enforcing positive quantity and price
func NewOrderItem(orderID, configurationID uuid.UUID, quantity int, unitPrice valueobject.Money) (*OrderItem, error) {
	if configurationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CONFIGURATION", "Configuration ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !unitPrice.IsPositive() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price must be positive")
	}

	price := unitPrice.Amount()
	return &OrderItem{
		ID:              uuid.New(),
		OrderID:         orderID,
		ConfigurationID: configurationID,
		Quantity:        quantity,
		UnitPrice:       price,
		TotalPrice:      price.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt:       time.Now(),
	}, nil
}

// Order is the aggregate root for a customer vehicle order.
// Status fields move only through the state machine; everything else is set
// at creation time.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber        string
	UserID             *uuid.UUID // nil for guest checkouts
	GuestSessionID     string     // set when UserID is nil
	VehicleID          uuid.UUID
	ConfigurationID    *uuid.UUID
	DealerID           *uuid.UUID
	Items              []OrderItem
	Status             OrderStatus
	PaymentStatus      OrderPaymentStatus
	FulfillmentStatus  FulfillmentStatus
	Pricing            PricingBreakdown
	Currency           valueobject.Currency
	Customer           CustomerInfo
	DeliveryAddress    valueobject.Address
	TradeIn            *TradeInInfo
	Notes              string
	ActualDeliveryDate *time.Time
	CancelReason       string
	DeletedAt          *time.Time
}

// NewOrder creates a new order in PENDING status
func NewOrder(
	orderNumber string,
	userID *uuid.UUID,
	guestSessionID string,
	vehicleID uuid.UUID,
	customer CustomerInfo,
	address valueobject.Address,
) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if (userID == nil || *userID == uuid.Nil) && guestSessionID == "" {
		return nil, shared.NewDomainError("INVALID_OWNER", "Order requires a user or a guest session")
	}
	if vehicleID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VEHICLE", "Vehicle ID cannot be empty")
	}
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if address.IsZero() {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Delivery address is required")
	}

	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		UserID:            userID,
		GuestSessionID:    guestSessionID,
		VehicleID:         vehicleID,
		Items:             make([]OrderItem, 0),
		Status:            OrderStatusPending,
		PaymentStatus:     OrderPaymentUnpaid,
		FulfillmentStatus: FulfillmentUnfulfilled,
		Currency:          valueobject.DefaultCurrency,
		Customer:          customer,
		DeliveryAddress:   address,
	}, nil
}

// AddItem appends a new line item. Only allowed before the order is priced
// and persisted, i.e. while still assembling a PENDING order.
func (o *Order) AddItem(configurationID uuid.UUID, quantity int, unitPrice valueobject.Money) (*OrderItem, error) {
	if o.Status != OrderStatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-pending order")
	}
	item, err := NewOrderItem(o.ID, configurationID, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, *item)
	o.UpdatedAt = time.Now()
	return item, nil
}

// SetPricing applies a computed pricing breakdown after validating it
func (o *Order) SetPricing(p PricingBreakdown) error {
	if err := p.Validate(); err != nil {
		return err
	}
	o.Pricing = p
	o.UpdatedAt = time.Now()
	return nil
}

// SetDealer attaches the fulfilling dealer
func (o *Order) SetDealer(dealerID uuid.UUID) {
	o.DealerID = &dealerID
	o.UpdatedAt = time.Now()
}

// SetTradeIn attaches trade-in details
func (o *Order) SetTradeIn(info TradeInInfo) {
	o.TradeIn = &info
	o.UpdatedAt = time.Now()
}

// SetNotes sets free-form customer notes
func (o *Order) SetNotes(notes string) {
	o.Notes = notes
	o.UpdatedAt = time.Now()
}

// MarkPaymentStatus records the summarized payment position
func (o *Order) MarkPaymentStatus(status OrderPaymentStatus) {
	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
}

// IsTerminal returns true if the order reached DELIVERED or CANCELLED
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// ItemCount returns the number of line items
func (o *Order) ItemCount() int {
	return len(o.Items)
}

// OwnerRef returns a printable owner reference for notifications
func (o *Order) OwnerRef() string {
	if o.UserID != nil && *o.UserID != uuid.Nil {
		return o.UserID.String()
	}
	return o.GuestSessionID
}
