package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/ordering"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for orders
type OrderModel struct {
	AggregateModel
	OrderNumber        string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID             *uuid.UUID `gorm:"type:uuid;index"`
	GuestSessionID     string     `gorm:"type:varchar(100);index"`
	VehicleID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	ConfigurationID    *uuid.UUID `gorm:"type:uuid"`
	DealerID           *uuid.UUID `gorm:"type:uuid;index"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	PaymentStatus      string     `gorm:"type:varchar(20);not null"`
	FulfillmentStatus  string     `gorm:"type:varchar(20);not null"`
	Subtotal           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Tax                decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Shipping           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Fees               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total              decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency           string          `gorm:"type:varchar(3);not null"`
	CustomerFirstName  string          `gorm:"type:varchar(100);not null"`
	CustomerLastName   string          `gorm:"type:varchar(100);not null"`
	CustomerEmail      string          `gorm:"type:varchar(200);not null;index"`
	CustomerPhone      string          `gorm:"type:varchar(30)"`
	AddressLine1       string          `gorm:"type:varchar(200);not null"`
	AddressLine2       string          `gorm:"type:varchar(200)"`
	AddressCity        string          `gorm:"type:varchar(100);not null"`
	AddressState       string          `gorm:"type:varchar(100);not null"`
	AddressPostalCode  string          `gorm:"type:varchar(20);not null"`
	AddressCountry     string          `gorm:"type:varchar(100)"`
	TradeInMake        string          `gorm:"type:varchar(100)"`
	TradeInModel       string          `gorm:"type:varchar(100)"`
	TradeInYear        int
	TradeInMileage     int
	TradeInValue       decimal.Decimal `gorm:"type:numeric(12,2)"`
	Notes              string          `gorm:"type:text"`
	ActualDeliveryDate *time.Time
	CancelReason       string     `gorm:"type:varchar(500)"`
	DeletedAt          *time.Time `gorm:"index"`
}

// TableName specifies the table name
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is the persistence model for order line items
type OrderItemModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ConfigurationID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity        int             `gorm:"not null"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName specifies the table name
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderStatusHistoryModel is the append-only audit table for order transitions
type OrderStatusHistoryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	FromStatus *string   `gorm:"type:varchar(20)"`
	ToStatus   string    `gorm:"type:varchar(20);not null"`
	Actor      string    `gorm:"type:varchar(100);not null"`
	Reason     string    `gorm:"type:varchar(500)"`
	Metadata   JSONMap
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName specifies the table name
func (OrderStatusHistoryModel) TableName() string {
	return "order_status_history"
}

// ToDomain converts OrderModel to the domain Order. Items are loaded
// separately and attached by the repository.
func (m *OrderModel) ToDomain() (*ordering.Order, error) {
	addrOpts := []valueobject.AddressOption{}
	if m.AddressLine2 != "" {
		addrOpts = append(addrOpts, valueobject.WithLine2(m.AddressLine2))
	}
	if m.AddressCountry != "" {
		addrOpts = append(addrOpts, valueobject.WithCountry(m.AddressCountry))
	}
	address, err := valueobject.NewAddress(m.AddressLine1, m.AddressCity, m.AddressState, m.AddressPostalCode, addrOpts...)
	if err != nil {
		return nil, err
	}

	order := &ordering.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		GuestSessionID:    m.GuestSessionID,
		VehicleID:         m.VehicleID,
		ConfigurationID:   m.ConfigurationID,
		DealerID:          m.DealerID,
		Status:            ordering.OrderStatus(m.Status),
		PaymentStatus:     ordering.OrderPaymentStatus(m.PaymentStatus),
		FulfillmentStatus: ordering.FulfillmentStatus(m.FulfillmentStatus),
		Pricing: ordering.PricingBreakdown{
			Subtotal: m.Subtotal,
			Discount: m.Discount,
			Tax:      m.Tax,
			Shipping: m.Shipping,
			Fees:     m.Fees,
			Total:    m.Total,
		},
		Currency: valueobject.Currency(m.Currency),
		Customer: ordering.CustomerInfo{
			FirstName: m.CustomerFirstName,
			LastName:  m.CustomerLastName,
			Email:     m.CustomerEmail,
			Phone:     m.CustomerPhone,
		},
		DeliveryAddress:    address,
		Notes:              m.Notes,
		ActualDeliveryDate: m.ActualDeliveryDate,
		CancelReason:       m.CancelReason,
		DeletedAt:          m.DeletedAt,
	}

	if m.TradeInMake != "" {
		order.TradeIn = &ordering.TradeInInfo{
			Make:           m.TradeInMake,
			Model:          m.TradeInModel,
			Year:           m.TradeInYear,
			Mileage:        m.TradeInMileage,
			EstimatedValue: m.TradeInValue,
		}
	}
	return order, nil
}

// OrderModelFromDomain converts a domain Order to its persistence model
func OrderModelFromDomain(o *ordering.Order) *OrderModel {
	m := &OrderModel{
		OrderNumber:        o.OrderNumber,
		UserID:             o.UserID,
		GuestSessionID:     o.GuestSessionID,
		VehicleID:          o.VehicleID,
		ConfigurationID:    o.ConfigurationID,
		DealerID:           o.DealerID,
		Status:             o.Status.String(),
		PaymentStatus:      string(o.PaymentStatus),
		FulfillmentStatus:  string(o.FulfillmentStatus),
		Subtotal:           o.Pricing.Subtotal,
		Discount:           o.Pricing.Discount,
		Tax:                o.Pricing.Tax,
		Shipping:           o.Pricing.Shipping,
		Fees:               o.Pricing.Fees,
		Total:              o.Pricing.Total,
		Currency:           string(o.Currency),
		CustomerFirstName:  o.Customer.FirstName,
		CustomerLastName:   o.Customer.LastName,
		CustomerEmail:      o.Customer.Email,
		CustomerPhone:      o.Customer.Phone,
		AddressLine1:       o.DeliveryAddress.Line1(),
		AddressLine2:       o.DeliveryAddress.Line2(),
		AddressCity:        o.DeliveryAddress.City(),
		AddressState:       o.DeliveryAddress.State(),
		AddressPostalCode:  o.DeliveryAddress.PostalCode(),
		AddressCountry:     o.DeliveryAddress.Country(),
		Notes:              o.Notes,
		ActualDeliveryDate: o.ActualDeliveryDate,
		CancelReason:       o.CancelReason,
		DeletedAt:          o.DeletedAt,
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)

	if o.TradeIn != nil {
		m.TradeInMake = o.TradeIn.Make
		m.TradeInModel = o.TradeIn.Model
		m.TradeInYear = o.TradeIn.Year
		m.TradeInMileage = o.TradeIn.Mileage
		m.TradeInValue = o.TradeIn.EstimatedValue
	}
	return m
}

// ToDomain converts OrderItemModel to the domain OrderItem
func (m *OrderItemModel) ToDomain() ordering.OrderItem {
	return ordering.OrderItem{
		ID:              m.ID,
		OrderID:         m.OrderID,
		ConfigurationID: m.ConfigurationID,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		TotalPrice:      m.TotalPrice,
		CreatedAt:       m.CreatedAt,
	}
}

// OrderItemModelFromDomain converts a domain OrderItem to its persistence model
func OrderItemModelFromDomain(item *ordering.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:              item.ID,
		OrderID:         item.OrderID,
		ConfigurationID: item.ConfigurationID,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		TotalPrice:      item.TotalPrice,
		CreatedAt:       item.CreatedAt,
	}
}

// ToDomain converts OrderStatusHistoryModel to the domain history row
func (m *OrderStatusHistoryModel) ToDomain() ordering.OrderStatusHistory {
	var from *ordering.OrderStatus
	if m.FromStatus != nil {
		s := ordering.OrderStatus(*m.FromStatus)
		from = &s
	}
	return ordering.OrderStatusHistory{
		ID:         m.ID,
		OrderID:    m.OrderID,
		FromStatus: from,
		ToStatus:   ordering.OrderStatus(m.ToStatus),
		Actor:      m.Actor,
		Reason:     m.Reason,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
	}
}

// OrderStatusHistoryModelFromDomain converts a domain history row to its model
func OrderStatusHistoryModelFromDomain(h *ordering.OrderStatusHistory) *OrderStatusHistoryModel {
	var from *string
	if h.FromStatus != nil {
		s := h.FromStatus.String()
		from = &s
	}
	return &OrderStatusHistoryModel{
		ID:         h.ID,
		OrderID:    h.OrderID,
		FromStatus: from,
		ToStatus:   h.ToStatus.String(),
		Actor:      h.Actor,
		Reason:     h.Reason,
		Metadata:   h.Metadata,
		CreatedAt:  h.CreatedAt,
	}
}
