package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	apppayment "github.com/motorline/backend/internal/application/payment"
	appreservation "github.com/motorline/backend/internal/application/reservation"
	"github.com/motorline/backend/internal/domain/ordering"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/reservation"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

const actorSystem = "system"

// Coordinator drives the order lifecycle: converting carts into durable
// orders, advancing status through the state machine and running the
// compensating actions that cancellation requires. Cross-component steps are
// not one transaction; each step is individually idempotent so a crashed
// sequence converges on retry.
type Coordinator struct {
	orderRepo    ordering.Repository
	stateMachine *ordering.StateMachine
	reservations *appreservation.Manager
	payments     *apppayment.Orchestrator
	notifier     shared.Notifier
	logger       *zap.Logger
}

// NewCoordinator creates a new order Coordinator
func NewCoordinator(
	orderRepo ordering.Repository,
	reservations *appreservation.Manager,
	payments *apppayment.Orchestrator,
	notifier shared.Notifier,
	logger *zap.Logger,
) *Coordinator {
	if notifier == nil {
		notifier = shared.NopNotifier{}
	}
	return &Coordinator{
		orderRepo:    orderRepo,
		stateMachine: ordering.NewStateMachine(),
		reservations: reservations,
		payments:     payments,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateOrder converts a cart snapshot into a durable PENDING order.
//
// Sequence: build and price the order, persist it atomically with its items
// and initial history, consume the backing reservations, then create the
// payment intent. The order is durable after the persist step; a payment
// intent failure is reported in the response rather than rolling the order
// back, and RetryPaymentIntent picks it up later.
func (c *Coordinator) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	orderNumber, err := c.orderRepo.GenerateOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	addrOpts := []valueobject.AddressOption{}
	if req.DeliveryAddress.Line2 != "" {
		addrOpts = append(addrOpts, valueobject.WithLine2(req.DeliveryAddress.Line2))
	}
	if req.DeliveryAddress.Country != "" {
		addrOpts = append(addrOpts, valueobject.WithCountry(req.DeliveryAddress.Country))
	}
	address, err := valueobject.NewAddress(
		req.DeliveryAddress.Line1,
		req.DeliveryAddress.City,
		req.DeliveryAddress.State,
		req.DeliveryAddress.PostalCode,
		addrOpts...,
	)
	if err != nil {
		return nil, err
	}

	order, err := ordering.NewOrder(
		orderNumber,
		req.UserID,
		req.GuestSessionID,
		req.VehicleID,
		ordering.CustomerInfo{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
		},
		address,
	)
	if err != nil {
		return nil, err
	}
	order.ConfigurationID = req.ConfigurationID
	if req.DealerID != nil {
		order.SetDealer(*req.DealerID)
	}
	if req.TradeIn != nil {
		order.SetTradeIn(ordering.TradeInInfo{
			Make:           req.TradeIn.Make,
			Model:          req.TradeIn.Model,
			Year:           req.TradeIn.Year,
			Mileage:        req.TradeIn.Mileage,
			EstimatedValue: req.TradeIn.EstimatedValue,
		})
	}
	if req.Notes != "" {
		order.SetNotes(req.Notes)
	}

	for _, item := range req.Items {
		unitPrice := valueobject.NewMoneyUSD(item.UnitPrice)
		if _, err := order.AddItem(item.ConfigurationID, item.Quantity, unitPrice); err != nil {
			return nil, err
		}
	}

	pricing, err := ordering.ComputePricing(order.Items, ordering.PricingInput{
		Discount: req.Discount,
		TaxRate:  req.TaxRate,
		Shipping: req.Shipping,
		Fees:     req.Fees,
	})
	if err != nil {
		return nil, err
	}
	if err := order.SetPricing(pricing); err != nil {
		return nil, err
	}

	if err := c.orderRepo.Create(ctx, order, ordering.NewInitialOrderHistory(order.ID, actorSystem)); err != nil {
		return nil, err
	}

	c.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", pricing.Total.String()),
	)

	// Reservations were validated when acquired; consuming after the order is
	// durable means a crash between the two steps leaves consumable holds, not
	// oversold stock. Consume is idempotent so the creation can be retried.
	for _, resID := range req.ReservationIDs {
		if err := c.reservations.Consume(ctx, resID, order.ID); err != nil {
			c.logger.Error("failed to consume reservation for order",
				zap.String("order_id", order.ID.String()),
				zap.String("reservation_id", resID.String()),
				zap.Error(err),
			)
			return nil, err
		}
	}

	c.notify(ctx, order, shared.NotificationOrderCreated, nil)

	resp := &CreateOrderResponse{Order: ToOrderResponse(order)}

	total := valueobject.NewMoneyUSD(pricing.Total)
	pay, payErr := c.payments.CreateIntent(ctx, order.ID, 1, total, map[string]string{
		"order_number": order.OrderNumber,
	})
	if payErr != nil {
		// The order stands; surface the failure so the client can retry the
		// intent without recreating the order.
		c.logger.Error("payment intent creation failed after order persist",
			zap.String("order_id", order.ID.String()),
			zap.Error(payErr),
		)
		resp.PaymentError = payErr.Error()
		return resp, nil
	}
	resp.PaymentID = &pay.ID
	return resp, nil
}

// RetryPaymentIntent creates the payment intent for an order whose original
// intent creation failed. A live payment already attached to the order is
// returned as-is.
func (c *Coordinator) RetryPaymentIntent(ctx context.Context, orderID uuid.UUID) (*apppayment.PaymentResponse, error) {
	order, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != ordering.OrderStatusPending {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment intents can only be created for pending orders")
	}

	total := valueobject.NewMoneyUSD(order.Pricing.Total)
	return c.payments.CreateIntent(ctx, order.ID, 1, total, map[string]string{
		"order_number": order.OrderNumber,
	})
}

// AdvanceStatus moves the order to target through the state machine. A stale
// aggregate version is retried once against fresh state; on a CANCELLED
// outcome the compensating actions run after the transition is durable.
//
// Cancelling an already cancelled order re-enters the compensation sequence
// instead of failing on the terminal state: each compensating step is
// idempotent, so only the ones still outstanding do work. That is how a
// partially compensated cancellation is retried.
func (c *Coordinator) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target ordering.OrderStatus, actor, reason string) (*OrderResponse, error) {
	if !target.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown order status %q", target))
	}

	var order *ordering.Order
	for i := 0; ; i++ {
		var err error
		order, err = c.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if target == ordering.OrderStatusCancelled && order.Status == ordering.OrderStatusCancelled {
			if err := c.compensateCancellation(ctx, order, reason); err != nil {
				return nil, err
			}
			resp := ToOrderResponse(order)
			return &resp, nil
		}

		change, err := c.stateMachine.Apply(order, target, actor, reason)
		if err != nil {
			return nil, err
		}

		err = c.orderRepo.UpdateStatus(ctx, change)
		if err == nil {
			break
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) && i == 0 {
			c.logger.Warn("order status update conflicted, retrying",
				zap.String("order_id", orderID.String()),
				zap.String("target", target.String()),
			)
			continue
		}
		return nil, err
	}

	c.logger.Info("order status advanced",
		zap.String("order_id", order.ID.String()),
		zap.String("status", target.String()),
		zap.String("actor", actor),
	)

	var compErr error
	switch target {
	case ordering.OrderStatusCancelled:
		compErr = c.compensateCancellation(ctx, order, reason)
		c.notify(ctx, order, shared.NotificationOrderCancelled, map[string]string{"reason": reason})
	case ordering.OrderStatusConfirmed:
		c.notify(ctx, order, shared.NotificationOrderConfirmed, nil)
	case ordering.OrderStatusShipped:
		c.notify(ctx, order, shared.NotificationOrderShipped, nil)
	case ordering.OrderStatusDelivered:
		c.notify(ctx, order, shared.NotificationOrderDelivered, nil)
	}
	if compErr != nil {
		return nil, compErr
	}

	resp := ToOrderResponse(order)
	return &resp, nil
}

// CancelOrder cancels the order and runs the compensations
func (c *Coordinator) CancelOrder(ctx context.Context, orderID uuid.UUID, actor, reason string) (*OrderResponse, error) {
	return c.AdvanceStatus(ctx, orderID, ordering.OrderStatusCancelled, actor, reason)
}

// FulfillOrder advances the order one fulfillment step:
// CONFIRMED to PROCESSING, PROCESSING to SHIPPED, SHIPPED to DELIVERED.
func (c *Coordinator) FulfillOrder(ctx context.Context, orderID uuid.UUID, actor, reason string) (*OrderResponse, error) {
	order, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var target ordering.OrderStatus
	switch order.Status {
	case ordering.OrderStatusConfirmed:
		target = ordering.OrderStatusProcessing
	case ordering.OrderStatusProcessing:
		target = ordering.OrderStatusShipped
	case ordering.OrderStatusShipped:
		target = ordering.OrderStatusDelivered
	default:
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Order in status %s has no next fulfillment step", order.Status))
	}
	return c.AdvanceStatus(ctx, orderID, target, actor, reason)
}

// ConfirmPayment submits a payment method for the order's latest payment and
// applies the outcome to the order right away instead of waiting for the
// gateway's webhook. Success confirms a PENDING order and marks it paid; a
// decline leaves the order PENDING for another attempt. The webhook later
// replays the same outcome; both paths are idempotent.
func (c *Coordinator) ConfirmPayment(ctx context.Context, orderID uuid.UUID, req apppayment.ConfirmRequest) (*apppayment.PaymentResponse, error) {
	if _, err := c.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	latest, err := c.payments.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	resp, err := c.payments.Confirm(ctx, latest.ID, req)
	if err != nil {
		return nil, err
	}

	switch payment.PaymentStatus(resp.Status) {
	case payment.StatusSucceeded:
		if err := c.PaymentSucceeded(ctx, orderID); err != nil {
			c.logger.Error("failed to apply payment success to order",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		}
	case payment.StatusFailed:
		if err := c.PaymentFailed(ctx, orderID, resp.FailureCode, resp.FailureMessage); err != nil {
			c.logger.Error("failed to record payment failure on order",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		}
	}
	return resp, nil
}

// compensateCancellation releases any remaining holds and refunds refundable
// payments. Each compensation is idempotent and individually committed; the
// cancellation itself stays durable no matter what fails here. When any step
// fails the returned error tells the caller to cancel again, which re-enters
// this sequence and performs only the steps still outstanding.
func (c *Coordinator) compensateCancellation(ctx context.Context, order *ordering.Order, reason string) error {
	failed := 0

	if _, err := c.reservations.ReleaseByHolder(ctx, reservation.HolderOrder, order.ID.String()); err != nil {
		c.logger.Error("failed to release reservations for cancelled order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		failed++
	}

	pays, err := c.payments.FindByOrderID(ctx, order.ID)
	if err != nil {
		c.logger.Error("failed to load payments for cancelled order",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		failed++
	}
	for _, pay := range pays {
		if err := c.payments.RefundAll(ctx, pay.ID, "order cancelled: "+reason, actorSystem); err != nil {
			c.logger.Error("failed to refund payment for cancelled order",
				zap.String("order_id", order.ID.String()),
				zap.String("payment_id", pay.ID.String()),
				zap.Error(err),
			)
			failed++
		}
	}

	if failed > 0 {
		return shared.NewDomainError("COMPENSATION_INCOMPLETE", fmt.Sprintf(
			"Order %s is cancelled but %d compensating step(s) failed; cancel again to run them", order.OrderNumber, failed))
	}
	return nil
}

// PaymentSucceeded confirms a PENDING order after its payment succeeded.
// Orders already past PENDING are left alone, which makes duplicate success
// reports harmless.
func (c *Coordinator) PaymentSucceeded(ctx context.Context, orderID uuid.UUID) error {
	order, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := c.orderRepo.UpdatePaymentStatus(ctx, orderID, ordering.OrderPaymentPaid); err != nil {
		return err
	}

	if order.Status != ordering.OrderStatusPending {
		c.logger.Debug("payment success for already-progressed order",
			zap.String("order_id", orderID.String()),
			zap.String("status", order.Status.String()),
		)
		return nil
	}

	_, err = c.AdvanceStatus(ctx, orderID, ordering.OrderStatusConfirmed, actorSystem, "payment succeeded")
	if err != nil {
		var ite *shared.InvalidTransitionError
		if errors.As(err, &ite) {
			return nil
		}
		return err
	}
	return nil
}

// PaymentFailed records a failed payment attempt. The order stays PENDING so
// the customer can retry with another method.
func (c *Coordinator) PaymentFailed(ctx context.Context, orderID uuid.UUID, code, message string) error {
	order, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	c.logger.Info("payment failed for order",
		zap.String("order_id", orderID.String()),
		zap.String("code", code),
		zap.String("message", message),
	)
	c.notify(ctx, order, shared.NotificationPaymentFailed, map[string]string{
		"code":    code,
		"message": message,
	})
	return nil
}

// PaymentRefunded records the summarized refund position on the order
func (c *Coordinator) PaymentRefunded(ctx context.Context, orderID uuid.UUID, fully bool) error {
	status := ordering.OrderPaymentPartiallyRefunded
	if fully {
		status = ordering.OrderPaymentRefunded
	}
	if err := c.orderRepo.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return err
	}
	order, err := c.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	c.notify(ctx, order, shared.NotificationPaymentRefunded, nil)
	return nil
}

// GetByID returns one order
func (c *Coordinator) GetByID(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := c.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetByOrderNumber returns one order by its human-facing number
func (c *Coordinator) GetByOrderNumber(ctx context.Context, orderNumber string) (*OrderResponse, error) {
	order, err := c.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// ListPayments returns every payment attempt recorded for an order
func (c *Coordinator) ListPayments(ctx context.Context, orderID uuid.UUID) ([]apppayment.PaymentResponse, error) {
	if _, err := c.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return c.payments.FindByOrderID(ctx, orderID)
}

// GetHistory returns the audit trail of one order
func (c *Coordinator) GetHistory(ctx context.Context, orderID uuid.UUID) ([]OrderHistoryResponse, error) {
	rows, err := c.orderRepo.FindHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]OrderHistoryResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToOrderHistoryResponse(&rows[i]))
	}
	return out, nil
}

// notify delivers best-effort; delivery failure never affects the order flow
func (c *Coordinator) notify(ctx context.Context, order *ordering.Order, kind shared.NotificationKind, extra map[string]string) {
	payload := map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"status":       order.Status.String(),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := c.notifier.Notify(ctx, order.Customer.Email, kind, payload); err != nil {
		c.logger.Warn("notification delivery failed",
			zap.String("order_id", order.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
