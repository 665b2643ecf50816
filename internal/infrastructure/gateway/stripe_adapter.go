package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

var centsFactor = decimal.NewFromInt(100)

// StripeAdapter implements payment.Gateway against the Stripe API
type StripeAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.InitStripeClient()
	return &StripeAdapter{
		config: config,
		logger: logger,
	}, nil
}

// CreateIntent creates a Stripe payment intent. The idempotency key makes a
// retried call return the original intent instead of creating a second one.
func (a *StripeAdapter) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.IntentResult, error) {
	a.logger.Debug("Creating Stripe payment intent",
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency))

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toCents(req.Amount)),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = req.Metadata
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, a.classifyError("create intent", err)
	}

	a.logger.Info("Created Stripe payment intent", zap.String("intent_id", intent.ID))
	return intentResult(intent), nil
}

// ConfirmIntent submits the tokenized payment method for an intent
func (a *StripeAdapter) ConfirmIntent(ctx context.Context, req payment.ConfirmIntentRequest) (*payment.IntentResult, error) {
	a.logger.Debug("Confirming Stripe payment intent", zap.String("intent_id", req.IntentID))

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(req.MethodRef),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}

	intent, err := paymentintent.Confirm(req.IntentID, params)
	if err != nil {
		// A card decline surfaces as an API error but is a payment outcome,
		// not a call failure; report it through the intent result.
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &payment.IntentResult{
				IntentID:       req.IntentID,
				Status:         payment.IntentFailed,
				FailureCode:    string(stripeErr.Code),
				FailureMessage: stripeErr.Msg,
			}, nil
		}
		return nil, a.classifyError("confirm intent", err)
	}

	return intentResult(intent), nil
}

// Refund asks Stripe to return part or all of a captured payment
func (a *StripeAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	a.logger.Debug("Creating Stripe refund",
		zap.String("intent_id", req.IntentID),
		zap.String("amount", req.Amount.String()))

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(toCents(req.Amount)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	ref, err := refund.New(params)
	if err != nil {
		return nil, a.classifyError("refund", err)
	}

	a.logger.Info("Created Stripe refund",
		zap.String("refund_id", ref.ID),
		zap.String("intent_id", req.IntentID))

	return &payment.RefundResult{
		RefundID: ref.ID,
		IntentID: req.IntentID,
		Amount:   fromCents(ref.Amount),
	}, nil
}

// VerifyWebhookSignature checks the payload signature against the webhook
// secret and decodes the event. An invalid signature is returned as-is so the
// handler can reject the request with 401.
func (a *StripeAdapter) VerifyWebhookSignature(payload []byte, signature string) (*payment.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, a.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	out := &payment.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch event.Type {
	case "payment_intent.succeeded",
		"payment_intent.processing",
		"payment_intent.requires_action",
		"payment_intent.payment_failed",
		"payment_intent.canceled":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent event: %w", err)
		}
		out.IntentID = intent.ID
		out.Status = payment.IntentStatus(intent.Status)
		if intent.LastPaymentError != nil {
			out.FailureCode = string(intent.LastPaymentError.Code)
			out.FailureMessage = intent.LastPaymentError.Msg
		}
		// Failed attempts revert the intent to requires_payment_method;
		// report the failure itself, not the reverted status.
		if event.Type == "payment_intent.payment_failed" {
			out.Status = payment.IntentFailed
			if out.FailureCode == "" {
				out.FailureCode = "payment_failed"
			}
		}

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("failed to decode charge event: %w", err)
		}
		if charge.PaymentIntent != nil {
			out.IntentID = charge.PaymentIntent.ID
		}
		out.AmountRefunded = fromCents(charge.AmountRefunded)

	default:
		a.logger.Debug("Unhandled Stripe event type", zap.String("type", string(event.Type)))
	}

	return out, nil
}

// classifyError wraps a Stripe failure as transient or permanent.
// Connection problems, rate limits and 5xx responses are retryable;
// everything else is not.
func (a *StripeAdapter) classifyError(operation string, err error) error {
	a.logger.Error("Stripe call failed", zap.String("operation", operation), zap.Error(err))

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// No structured error means the request may not have reached Stripe.
		return shared.NewTransientGatewayError("connection_error", err.Error())
	}

	switch {
	case stripeErr.Type == stripe.ErrorTypeAPI,
		stripeErr.Code == stripe.ErrorCodeRateLimit,
		stripeErr.HTTPStatusCode >= 500,
		stripeErr.HTTPStatusCode == 429:
		return shared.NewTransientGatewayError(string(stripeErr.Code), stripeErr.Msg)
	default:
		return shared.NewPermanentGatewayError(string(stripeErr.Code), stripeErr.Msg)
	}
}

func intentResult(intent *stripe.PaymentIntent) *payment.IntentResult {
	result := &payment.IntentResult{
		IntentID: intent.ID,
		Status:   payment.IntentStatus(intent.Status),
	}
	if intent.LastPaymentError != nil {
		result.FailureCode = string(intent.LastPaymentError.Code)
		result.FailureMessage = intent.LastPaymentError.Msg
	}
	return result
}

// toCents converts a decimal currency amount to Stripe's integer minor units
func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(centsFactor).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsFactor)
}
