package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type refundReaction struct {
	orderID uuid.UUID
	fully   bool
}

type fakeOrderReactor struct {
	succeeded []uuid.UUID
	failed    []uuid.UUID
	failCodes []string
	refunded  []refundReaction
	err       error
}

func (r *fakeOrderReactor) PaymentSucceeded(ctx context.Context, orderID uuid.UUID) error {
	r.succeeded = append(r.succeeded, orderID)
	return r.err
}

func (r *fakeOrderReactor) PaymentFailed(ctx context.Context, orderID uuid.UUID, code, message string) error {
	r.failed = append(r.failed, orderID)
	r.failCodes = append(r.failCodes, code)
	return r.err
}

func (r *fakeOrderReactor) PaymentRefunded(ctx context.Context, orderID uuid.UUID, fully bool) error {
	r.refunded = append(r.refunded, refundReaction{orderID: orderID, fully: fully})
	return r.err
}

func newTestWebhookService(repo *fakePaymentRepo, gw *fakeGateway) (*WebhookService, *fakeOrderReactor) {
	orch := newTestOrchestrator(repo, gw, newFakeDeduper())
	svc := NewWebhookService(gw, orch, zap.NewNop())
	reactor := &fakeOrderReactor{}
	svc.SetOrderReactor(reactor)
	return svc, reactor
}

func TestWebhookService_VerifySignature(t *testing.T) {
	event := statusEvent("pi_1", payment.IntentSucceeded)
	gw := &fakeGateway{event: event}
	svc, _ := newTestWebhookService(newFakePaymentRepo(), gw)

	got, err := svc.VerifySignature([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)

	gw.verifyErr = errors.New("signature mismatch")
	_, err = svc.VerifySignature([]byte("{}"), "bad")
	assert.Error(t, err)
}

func TestWebhookService_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeded event confirms the order", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		svc, reactor := newTestWebhookService(repo, &fakeGateway{})

		result, err := svc.Process(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)

		assert.True(t, result.Applied)
		assert.Equal(t, []uuid.UUID{pay.OrderID}, reactor.succeeded)
	})

	t.Run("failed event passes the decline to the order", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		svc, reactor := newTestWebhookService(repo, &fakeGateway{})

		event := statusEvent(pay.IntentID, payment.IntentFailed)
		event.FailureCode = "card_declined"

		_, err := svc.Process(ctx, event)
		require.NoError(t, err)

		assert.Equal(t, []uuid.UUID{pay.OrderID}, reactor.failed)
		assert.Equal(t, []string{"card_declined"}, reactor.failCodes)
	})

	t.Run("refund events report partial versus full", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		svc, reactor := newTestWebhookService(repo, &fakeGateway{})

		partial := statusEvent(pay.IntentID, payment.IntentSucceeded)
		partial.Type = "charge.refunded"
		partial.AmountRefunded = decimal.NewFromInt(280)
		_, err := svc.Process(ctx, partial)
		require.NoError(t, err)

		full := statusEvent(pay.IntentID, payment.IntentSucceeded)
		full.Type = "charge.refunded"
		full.AmountRefunded = decimal.NewFromInt(44280)
		_, err = svc.Process(ctx, full)
		require.NoError(t, err)

		require.Len(t, reactor.refunded, 2)
		assert.Equal(t, refundReaction{orderID: pay.OrderID, fully: false}, reactor.refunded[0])
		assert.Equal(t, refundReaction{orderID: pay.OrderID, fully: true}, reactor.refunded[1])
	})

	t.Run("events without effect never reach the order", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		svc, reactor := newTestWebhookService(repo, &fakeGateway{})

		// Stale, duplicate and unknown-intent outcomes all stay payment-side.
		_, err := svc.Process(ctx, statusEvent(pay.IntentID, payment.IntentProcessing))
		require.NoError(t, err)
		_, err = svc.Process(ctx, statusEvent("pi_foreign", payment.IntentSucceeded))
		require.NoError(t, err)

		assert.Empty(t, reactor.succeeded)
		assert.Empty(t, reactor.failed)
		assert.Empty(t, reactor.refunded)
	})

	t.Run("reaction failure does not fail processing", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		svc, reactor := newTestWebhookService(repo, &fakeGateway{})
		reactor.err = errors.New("order repo down")

		result, err := svc.Process(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)
		assert.True(t, result.Applied)
	})

	t.Run("no reactor wired is tolerated", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())
		svc := NewWebhookService(&fakeGateway{}, orch, zap.NewNop())

		result, err := svc.Process(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)
		assert.True(t, result.Applied)
	})
}
