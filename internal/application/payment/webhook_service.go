package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"go.uber.org/zap"
)

// OrderReactor is notified after a webhook event changed payment state so the
// owning order can react. Implementations must be idempotent; the same
// payment outcome may be reported more than once.
type OrderReactor interface {
	PaymentSucceeded(ctx context.Context, orderID uuid.UUID) error
	PaymentFailed(ctx context.Context, orderID uuid.UUID, code, message string) error
	PaymentRefunded(ctx context.Context, orderID uuid.UUID, fully bool) error
}

// WebhookService verifies incoming gateway notifications, reconciles them
// into payment state and fans the outcome out to the order side.
type WebhookService struct {
	gateway      payment.Gateway
	orchestrator *Orchestrator
	reactor      OrderReactor
	logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(gateway payment.Gateway, orchestrator *Orchestrator, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		gateway:      gateway,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// SetOrderReactor wires the order-side reaction. Separate from construction
// because the order coordinator itself depends on the payment orchestrator.
func (s *WebhookService) SetOrderReactor(reactor OrderReactor) {
	s.reactor = reactor
}

// VerifySignature checks the payload signature and decodes the event
func (s *WebhookService) VerifySignature(payload []byte, signature string) (*payment.WebhookEvent, error) {
	return s.gateway.VerifyWebhookSignature(payload, signature)
}

// Process reconciles a verified event and triggers the order-side reaction
// when the event actually changed payment state. Reaction failures are logged
// but do not fail processing; the payment record is already consistent and
// the gateway must not redeliver.
func (s *WebhookService) Process(ctx context.Context, event *payment.WebhookEvent) (*ReconcileResult, error) {
	result, err := s.orchestrator.ReconcileEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	if !result.Applied || s.reactor == nil {
		return result, nil
	}

	pay, err := s.orchestrator.GetByID(ctx, uuid.MustParse(result.PaymentID))
	if err != nil {
		s.logger.Error("failed to load payment for order reaction", zap.Error(err))
		return result, nil
	}

	var reactErr error
	switch payment.PaymentStatus(pay.Status) {
	case payment.StatusSucceeded:
		reactErr = s.reactor.PaymentSucceeded(ctx, pay.OrderID)
	case payment.StatusFailed:
		reactErr = s.reactor.PaymentFailed(ctx, pay.OrderID, pay.FailureCode, pay.FailureMessage)
	case payment.StatusRefunded:
		reactErr = s.reactor.PaymentRefunded(ctx, pay.OrderID, true)
	case payment.StatusPartiallyRefunded:
		reactErr = s.reactor.PaymentRefunded(ctx, pay.OrderID, false)
	}
	if reactErr != nil {
		s.logger.Error("order reaction to payment event failed",
			zap.String("event_id", event.ID),
			zap.String("order_id", pay.OrderID.String()),
			zap.Error(reactErr),
		)
	}
	return result, nil
}
