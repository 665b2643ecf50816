package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// IntentStatus is the gateway-normalized status of a payment intent.
// Adapters translate provider-specific vocabulary into these values.
type IntentStatus string

const (
	IntentRequiresMethod       IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentRequiresAction       IntentStatus = "requires_action"
	IntentProcessing           IntentStatus = "processing"
	IntentSucceeded            IntentStatus = "succeeded"
	IntentCanceled             IntentStatus = "canceled"

	// IntentFailed is synthesized by adapters for declined or failed charge
	// attempts; providers often report these by reverting the intent to an
	// earlier status plus an error object.
	IntentFailed IntentStatus = "payment_failed"
)

// intentStatusMapping is the fixed lookup table from gateway-reported intent
// status to internal PaymentStatus. The gateway's "canceled" spelling maps to
// the same CANCELLED value as a locally initiated cancellation.
var intentStatusMapping = map[IntentStatus]PaymentStatus{
	IntentRequiresMethod:       StatusPending,
	IntentRequiresConfirmation: StatusPending,
	IntentRequiresAction:       StatusRequiresAction,
	IntentProcessing:           StatusProcessing,
	IntentSucceeded:            StatusSucceeded,
	IntentCanceled:             StatusCancelled,
	IntentFailed:               StatusFailed,
}

// MapIntentStatus translates a gateway intent status to the internal
// PaymentStatus. Unknown statuses map to PROCESSING so an unexpected
// intermediate gateway state never closes a payment.
func MapIntentStatus(s IntentStatus) PaymentStatus {
	if mapped, ok := intentStatusMapping[s]; ok {
		return mapped
	}
	return StatusProcessing
}

// CreateIntentRequest is the input for Gateway.CreateIntent
type CreateIntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// ConfirmIntentRequest is the input for Gateway.ConfirmIntent
type ConfirmIntentRequest struct {
	IntentID       string
	MethodRef      string
	IdempotencyKey string
}

// RefundRequest is the input for Gateway.Refund
type RefundRequest struct {
	IntentID       string
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// IntentResult is the gateway's view of an intent after an operation
type IntentResult struct {
	IntentID       string
	Status         IntentStatus
	FailureCode    string
	FailureMessage string
}

// RefundResult is the gateway's view of a completed refund request
type RefundResult struct {
	RefundID string
	IntentID string
	Amount   decimal.Decimal
}

// WebhookEvent is a verified, decoded gateway notification
type WebhookEvent struct {
	ID             string
	Type           string
	IntentID       string
	Status         IntentStatus
	FailureCode    string
	FailureMessage string
	AmountRefunded decimal.Decimal
}

// Gateway is the port to the external payment provider. Implementations must
// pass the supplied idempotency keys through so a retried call has at most
// one effect, and must classify failures as transient or permanent via
// shared.GatewayError.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*IntentResult, error)
	ConfirmIntent(ctx context.Context, req ConfirmIntentRequest) (*IntentResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error)
}
