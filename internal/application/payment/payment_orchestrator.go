package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const actorGateway = "gateway"

// EventDeduper is a best-effort fast path for webhook deduplication. The
// authoritative check is the EventID column on payment history; the deduper
// only saves a database round trip for the common duplicate case.
type EventDeduper interface {
	// MarkIfFirst returns true the first time eventID is seen within the
	// retention window.
	MarkIfFirst(ctx context.Context, eventID string) (bool, error)

	// Unmark removes a mark so a redelivery of the event is not dropped.
	// Called when applying a first-seen event fails.
	Unmark(ctx context.Context, eventID string) error
}

// RetryConfig bounds the automatic retries against the gateway
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Orchestrator coordinates payments with the external gateway: creating
// intents, confirming them, reconciling webhook events into payment state and
// issuing refunds. Every gateway call carries an idempotency key so retries
// have at most one external effect.
type Orchestrator struct {
	paymentRepo payment.Repository
	gateway     payment.Gateway
	deduper     EventDeduper
	retry       RetryConfig
	logger      *zap.Logger
}

// NewOrchestrator creates a new payment Orchestrator
func NewOrchestrator(
	paymentRepo payment.Repository,
	gateway payment.Gateway,
	deduper EventDeduper,
	retry RetryConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		deduper:     deduper,
		retry:       retry,
		logger:      logger,
	}
}

// withGatewayRetry runs op with exponential backoff. Permanent gateway
// errors stop the retries immediately; everything transient is retried up to
// the configured bound.
func (o *Orchestrator) withGatewayRetry(ctx context.Context, operation string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.retry.InitialInterval
	bo.MaxInterval = o.retry.MaxInterval

	err := backoff.Retry(func() error {
		if err := op(); err != nil {
			if shared.IsTransientGatewayError(err) {
				o.logger.Warn("transient gateway error, retrying",
					zap.String("operation", operation),
					zap.Error(err),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, o.retry.MaxRetries), ctx))

	if err != nil {
		var pe *backoff.PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		return shared.NewProcessingError(operation, err)
	}
	return nil
}

// CreateIntent creates a gateway intent for the given amount and persists the
// matching PENDING payment with its initial history row. The idempotency key
// is derived from the order and attempt so a retried call reuses the same
// intent instead of charging twice.
func (o *Orchestrator) CreateIntent(ctx context.Context, orderID uuid.UUID, attempt int, amount valueobject.Money, metadata map[string]string) (*PaymentResponse, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["order_id"] = orderID.String()

	var result *payment.IntentResult
	err := o.withGatewayRetry(ctx, "create_intent", func() error {
		var gwErr error
		result, gwErr = o.gateway.CreateIntent(ctx, payment.CreateIntentRequest{
			Amount:         amount.Amount(),
			Currency:       string(amount.Currency()),
			IdempotencyKey: fmt.Sprintf("ord:%s:intent:%d", orderID, attempt),
			Metadata:       metadata,
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	pay, err := payment.NewPayment(orderID, result.IntentID, amount, metadata)
	if err != nil {
		return nil, err
	}

	if err := o.paymentRepo.Create(ctx, pay, payment.NewInitialPaymentHistory(pay.ID, "system")); err != nil {
		// A unique intent id conflict means a previous attempt already
		// persisted this payment; surface the existing row.
		if errors.Is(err, shared.ErrAlreadyExists) {
			existing, findErr := o.paymentRepo.FindByIntentID(ctx, result.IntentID)
			if findErr != nil {
				return nil, findErr
			}
			resp := ToPaymentResponse(existing)
			return &resp, nil
		}
		return nil, err
	}

	o.logger.Info("payment intent created",
		zap.String("payment_id", pay.ID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("intent_id", result.IntentID),
		zap.String("amount", amount.String()),
	)

	resp := ToPaymentResponse(pay)
	return &resp, nil
}

// Confirm submits the tokenized payment method to the gateway and applies the
// resulting status to the payment.
func (o *Orchestrator) Confirm(ctx context.Context, paymentID uuid.UUID, req ConfirmRequest) (*PaymentResponse, error) {
	pay, err := o.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if pay.IsFullyClosed() {
		return nil, shared.NewTerminalStateError(pay.Status.String())
	}

	var result *payment.IntentResult
	err = o.withGatewayRetry(ctx, "confirm_intent", func() error {
		var gwErr error
		result, gwErr = o.gateway.ConfirmIntent(ctx, payment.ConfirmIntentRequest{
			IntentID:       pay.IntentID,
			MethodRef:      req.MethodRef,
			IdempotencyKey: fmt.Sprintf("pay:%s:confirm:%d", pay.ID, pay.GetVersion()),
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	pay.SetMethodRef(req.MethodRef)
	target := payment.MapIntentStatus(result.Status)
	if target != pay.Status {
		history, applyErr := pay.ApplyStatus(target, "system", "gateway confirmation")
		if applyErr != nil {
			return nil, applyErr
		}
		if target == payment.StatusFailed {
			pay.RecordFailure(result.FailureCode, result.FailureMessage)
		}
		if err := o.paymentRepo.Update(ctx, pay, history); err != nil {
			return nil, err
		}
	} else if err := o.paymentRepo.Update(ctx, pay, nil); err != nil {
		return nil, err
	}

	o.logger.Info("payment confirmed",
		zap.String("payment_id", pay.ID.String()),
		zap.String("status", pay.Status.String()),
	)

	resp := ToPaymentResponse(pay)
	return &resp, nil
}

// Refund asks the gateway to return funds and records the refund on the
// payment, moving it to PARTIALLY_REFUNDED or REFUNDED.
func (o *Orchestrator) Refund(ctx context.Context, paymentID uuid.UUID, req RefundRequest, actor string) (*PaymentResponse, error) {
	pay, err := o.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !pay.Status.IsRefundable() {
		return nil, shared.NewDomainError("INVALID_STATE", "Payment is not in a refundable state")
	}
	if req.Amount.GreaterThan(pay.RemainingRefundable()) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Refund amount exceeds remaining refundable amount")
	}

	err = o.withGatewayRetry(ctx, "refund", func() error {
		_, gwErr := o.gateway.Refund(ctx, payment.RefundRequest{
			IntentID:       pay.IntentID,
			Amount:         req.Amount,
			Reason:         req.Reason,
			IdempotencyKey: fmt.Sprintf("pay:%s:refund:%s", pay.ID, pay.RefundAmount.Add(req.Amount)),
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	history, err := pay.AddRefund(req.Amount, actor, req.Reason)
	if err != nil {
		return nil, err
	}
	if err := o.paymentRepo.Update(ctx, pay, history); err != nil {
		return nil, err
	}

	o.logger.Info("payment refunded",
		zap.String("payment_id", pay.ID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("status", pay.Status.String()),
	)

	resp := ToPaymentResponse(pay)
	return &resp, nil
}

// RefundAll refunds the full remaining amount of a payment. Used by order
// cancellation compensation; a payment with nothing left to refund is a no-op.
func (o *Orchestrator) RefundAll(ctx context.Context, paymentID uuid.UUID, reason, actor string) error {
	pay, err := o.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if !pay.Status.IsRefundable() {
		return nil
	}
	remaining := pay.RemainingRefundable()
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	_, err = o.Refund(ctx, paymentID, RefundRequest{Amount: remaining, Reason: reason}, actor)
	return err
}

// ReconcileEvent applies one verified gateway event to the matching payment.
//
// Duplicates are dropped: first via the deduper fast path, then via the
// authoritative event id check on payment history. Events arriving after the
// payment is fully closed never change it. A version conflict with a
// concurrent writer is retried once against fresh state.
func (o *Orchestrator) ReconcileEvent(ctx context.Context, event *payment.WebhookEvent) (*ReconcileResult, error) {
	result := &ReconcileResult{EventID: event.ID}

	marked := false
	if o.deduper != nil {
		first, err := o.deduper.MarkIfFirst(ctx, event.ID)
		if err != nil {
			// Fast path down; fall through to the authoritative check.
			o.logger.Warn("event dedup cache unavailable", zap.Error(err))
		} else if !first {
			result.Outcome = "duplicate"
			return result, nil
		} else {
			marked = true
		}
	}

	res, err := o.reconcileMarked(ctx, event, result)
	if err != nil && marked {
		// The event was not applied; clear the mark so the gateway's
		// redelivery is not mistaken for a duplicate.
		if unmarkErr := o.deduper.Unmark(ctx, event.ID); unmarkErr != nil {
			o.logger.Warn("failed to clear event dedup mark",
				zap.String("event_id", event.ID),
				zap.Error(unmarkErr),
			)
		}
	}
	return res, err
}

func (o *Orchestrator) reconcileMarked(ctx context.Context, event *payment.WebhookEvent, result *ReconcileResult) (*ReconcileResult, error) {
	pay, err := o.paymentRepo.FindByIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Event for an intent we never created, e.g. from another
			// environment sharing the gateway account. Acknowledge and drop.
			o.logger.Warn("event references unknown intent",
				zap.String("event_id", event.ID),
				zap.String("intent_id", event.IntentID),
			)
			result.Outcome = "unknown_intent"
			return result, nil
		}
		return nil, err
	}
	result.PaymentID = pay.ID.String()

	for i := 0; ; i++ {
		outcome, err := o.applyEvent(ctx, pay, event)
		if err == nil {
			result.Applied = outcome == "applied"
			result.Outcome = outcome
			return result, nil
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) && i == 0 {
			pay, err = o.paymentRepo.FindByIntentID(ctx, event.IntentID)
			if err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
}

func (o *Orchestrator) applyEvent(ctx context.Context, pay *payment.Payment, event *payment.WebhookEvent) (string, error) {
	seen, err := o.paymentRepo.HistoryHasEvent(ctx, pay.ID, event.ID)
	if err != nil {
		return "", err
	}
	if seen {
		return "duplicate", nil
	}

	if event.AmountRefunded.GreaterThan(decimal.Zero) {
		return o.applyRefundEvent(ctx, pay, event)
	}

	if pay.IsFullyClosed() {
		o.logger.Info("event ignored, payment fully closed",
			zap.String("event_id", event.ID),
			zap.String("payment_id", pay.ID.String()),
			zap.String("status", pay.Status.String()),
		)
		return "ignored_closed", nil
	}

	target := payment.MapIntentStatus(event.Status)
	if target == pay.Status {
		return "no_change", nil
	}
	if !pay.Status.CanTransitionTo(target) {
		// Out-of-order delivery, e.g. a processing event arriving after
		// succeeded. The later state already won; drop the stale event.
		o.logger.Info("stale event ignored",
			zap.String("event_id", event.ID),
			zap.String("current", pay.Status.String()),
			zap.String("reported", target.String()),
		)
		return "ignored_stale", nil
	}

	history, err := pay.ApplyStatus(target, actorGateway, "gateway event "+event.Type)
	if err != nil {
		return "", err
	}
	history.WithEventID(event.ID)
	if target == payment.StatusFailed {
		pay.RecordFailure(event.FailureCode, event.FailureMessage)
	}

	if err := o.paymentRepo.Update(ctx, pay, history); err != nil {
		return "", err
	}

	o.logger.Info("payment status reconciled from event",
		zap.String("event_id", event.ID),
		zap.String("payment_id", pay.ID.String()),
		zap.String("status", target.String()),
	)
	return "applied", nil
}

// applyRefundEvent records a gateway-initiated refund. AmountRefunded is the
// cumulative refunded total as reported by the gateway.
func (o *Orchestrator) applyRefundEvent(ctx context.Context, pay *payment.Payment, event *payment.WebhookEvent) (string, error) {
	delta := event.AmountRefunded.Sub(pay.RefundAmount)
	if delta.LessThanOrEqual(decimal.Zero) {
		return "no_change", nil
	}
	if !pay.Status.IsRefundable() {
		o.logger.Warn("refund event for non-refundable payment ignored",
			zap.String("event_id", event.ID),
			zap.String("payment_id", pay.ID.String()),
			zap.String("status", pay.Status.String()),
		)
		return "ignored_closed", nil
	}

	history, err := pay.AddRefund(delta, actorGateway, "gateway event "+event.Type)
	if err != nil {
		return "", err
	}
	history.WithEventID(event.ID)
	if err := o.paymentRepo.Update(ctx, pay, history); err != nil {
		return "", err
	}

	o.logger.Info("refund reconciled from event",
		zap.String("event_id", event.ID),
		zap.String("payment_id", pay.ID.String()),
		zap.String("amount", delta.String()),
	)
	return "applied", nil
}

// FindByOrderID returns every payment attempt made for an order
func (o *Orchestrator) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]PaymentResponse, error) {
	pays, err := o.paymentRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, 0, len(pays))
	for i := range pays {
		out = append(out, ToPaymentResponse(&pays[i]))
	}
	return out, nil
}

// FindLatestByOrderID returns the most recent payment attempt for an order
func (o *Orchestrator) FindLatestByOrderID(ctx context.Context, orderID uuid.UUID) (*PaymentResponse, error) {
	pay, err := o.paymentRepo.FindLatestByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(pay)
	return &resp, nil
}

// GetByID returns one payment
func (o *Orchestrator) GetByID(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	pay, err := o.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(pay)
	return &resp, nil
}

// GetHistory returns the audit trail of one payment
func (o *Orchestrator) GetHistory(ctx context.Context, id uuid.UUID) ([]PaymentHistoryResponse, error) {
	rows, err := o.paymentRepo.FindHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentHistoryResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToPaymentHistoryResponse(&rows[i]))
	}
	return out, nil
}
