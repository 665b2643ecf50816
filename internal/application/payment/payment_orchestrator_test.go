package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePaymentRepo is an in-memory payment.Repository. Update errors can be
// scripted per call via updateErrs.
type fakePaymentRepo struct {
	payments   map[uuid.UUID]*payment.Payment
	histories  map[uuid.UUID][]payment.PaymentStatusHistory
	updateErrs []error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:  make(map[uuid.UUID]*payment.Payment),
		histories: make(map[uuid.UUID][]payment.PaymentStatusHistory),
	}
}

func (r *fakePaymentRepo) add(p *payment.Payment) {
	cp := *p
	r.payments[p.ID] = &cp
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *payment.Payment, initial *payment.PaymentStatusHistory) error {
	for _, existing := range r.payments {
		if existing.IntentID == p.IntentID {
			return shared.ErrAlreadyExists
		}
	}
	cp := *p
	r.payments[p.ID] = &cp
	if initial != nil {
		r.histories[p.ID] = append(r.histories[p.ID], *initial)
	}
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) FindByIntentID(ctx context.Context, intentID string) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.IntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakePaymentRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindLatestByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	var latest *payment.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, shared.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *payment.Payment, history *payment.PaymentStatusHistory) error {
	if len(r.updateErrs) > 0 {
		err := r.updateErrs[0]
		r.updateErrs = r.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *p
	r.payments[p.ID] = &cp
	if history != nil {
		r.histories[p.ID] = append(r.histories[p.ID], *history)
	}
	return nil
}

func (r *fakePaymentRepo) FindHistory(ctx context.Context, paymentID uuid.UUID) ([]payment.PaymentStatusHistory, error) {
	return r.histories[paymentID], nil
}

func (r *fakePaymentRepo) HistoryHasEvent(ctx context.Context, paymentID uuid.UUID, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	for _, row := range r.histories[paymentID] {
		if row.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

// fakeGateway records every call and replies with scripted results. Errors in
// the per-call queues are popped first; the sticky error fields apply after.
type fakeGateway struct {
	createResult  *payment.IntentResult
	createErrs    []error
	createErr     error
	createCalls   []payment.CreateIntentRequest
	confirmResult *payment.IntentResult
	confirmErr    error
	confirmCalls  []payment.ConfirmIntentRequest
	refundErr     error
	refundCalls   []payment.RefundRequest
	event         *payment.WebhookEvent
	verifyErr     error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.IntentResult, error) {
	g.createCalls = append(g.createCalls, req)
	if len(g.createErrs) > 0 {
		err := g.createErrs[0]
		g.createErrs = g.createErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createResult, nil
}

func (g *fakeGateway) ConfirmIntent(ctx context.Context, req payment.ConfirmIntentRequest) (*payment.IntentResult, error) {
	g.confirmCalls = append(g.confirmCalls, req)
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmResult, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	g.refundCalls = append(g.refundCalls, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &payment.RefundResult{RefundID: "re_1", IntentID: req.IntentID, Amount: req.Amount}, nil
}

func (g *fakeGateway) VerifyWebhookSignature(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.event, nil
}

type fakeDeduper struct {
	seen     map[string]bool
	markErr  error
	unmarked []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) MarkIfFirst(ctx context.Context, eventID string) (bool, error) {
	if d.markErr != nil {
		return false, d.markErr
	}
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *fakeDeduper) Unmark(ctx context.Context, eventID string) error {
	delete(d.seen, eventID)
	d.unmarked = append(d.unmarked, eventID)
	return nil
}

func newTestOrchestrator(repo payment.Repository, gw payment.Gateway, deduper EventDeduper) *Orchestrator {
	return NewOrchestrator(repo, gw, deduper, RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, zap.NewNop())
}

func seedPayment(t *testing.T, repo *fakePaymentRepo, status payment.PaymentStatus) *payment.Payment {
	t.Helper()
	pay, err := payment.NewPayment(uuid.New(), "pi_"+uuid.NewString()[:8], valueobject.NewMoneyUSDFromFloat(44280), nil)
	require.NoError(t, err)
	pay.Status = status
	repo.add(pay)
	return pay
}

func statusEvent(intentID string, status payment.IntentStatus) *payment.WebhookEvent {
	return &payment.WebhookEvent{
		ID:       "evt_" + uuid.NewString()[:8],
		Type:     "payment_intent." + string(status),
		IntentID: intentID,
		Status:   status,
	}
}

func TestOrchestrator_CreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("creates gateway intent and persists pending payment", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gw := &fakeGateway{createResult: &payment.IntentResult{IntentID: "pi_new", Status: payment.IntentRequiresConfirmation}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())
		orderID := uuid.New()

		resp, err := orch.CreateIntent(ctx, orderID, 1, valueobject.NewMoneyUSDFromFloat(44280), nil)
		require.NoError(t, err)

		assert.Equal(t, "pi_new", resp.IntentID)
		assert.Equal(t, string(payment.StatusPending), resp.Status)
		require.Len(t, gw.createCalls, 1)
		assert.Equal(t, fmt.Sprintf("ord:%s:intent:1", orderID), gw.createCalls[0].IdempotencyKey)
		assert.Equal(t, orderID.String(), gw.createCalls[0].Metadata["order_id"])

		stored, err := repo.FindByIntentID(ctx, "pi_new")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, stored.Status)
		assert.Len(t, repo.histories[stored.ID], 1)
	})

	t.Run("returns the existing payment when the intent was already persisted", func(t *testing.T) {
		repo := newFakePaymentRepo()
		existing := seedPayment(t, repo, payment.StatusPending)
		gw := &fakeGateway{createResult: &payment.IntentResult{IntentID: existing.IntentID, Status: payment.IntentRequiresConfirmation}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		resp, err := orch.CreateIntent(ctx, existing.OrderID, 1, valueobject.NewMoneyUSDFromFloat(44280), nil)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
	})

	t.Run("retries transient gateway errors", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gw := &fakeGateway{
			createResult: &payment.IntentResult{IntentID: "pi_retry", Status: payment.IntentRequiresConfirmation},
			createErrs:   []error{shared.NewTransientGatewayError("rate_limited", "slow down")},
		}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.CreateIntent(ctx, uuid.New(), 1, valueobject.NewMoneyUSDFromFloat(100), nil)
		require.NoError(t, err)
		assert.Len(t, gw.createCalls, 2)
	})

	t.Run("permanent gateway error stops immediately", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gw := &fakeGateway{createErrs: []error{shared.NewPermanentGatewayError("card_declined", "declined")}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.CreateIntent(ctx, uuid.New(), 1, valueobject.NewMoneyUSDFromFloat(100), nil)

		var ge *shared.GatewayError
		require.ErrorAs(t, err, &ge)
		assert.False(t, ge.Transient)
		assert.Len(t, gw.createCalls, 1)
	})

	t.Run("exhausted retries surface a processing error", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gw := &fakeGateway{createErr: shared.NewTransientGatewayError("timeout", "gateway timeout")}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.CreateIntent(ctx, uuid.New(), 1, valueobject.NewMoneyUSDFromFloat(100), nil)

		var pe *shared.ProcessingError
		require.ErrorAs(t, err, &pe)
		assert.Len(t, gw.createCalls, 4)
	})
}

func TestOrchestrator_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the gateway result and stores the method ref", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusPending)
		gw := &fakeGateway{confirmResult: &payment.IntentResult{IntentID: pay.IntentID, Status: payment.IntentSucceeded}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		resp, err := orch.Confirm(ctx, pay.ID, ConfirmRequest{MethodRef: "pm_tok_visa"})
		require.NoError(t, err)

		assert.Equal(t, string(payment.StatusSucceeded), resp.Status)
		require.Len(t, gw.confirmCalls, 1)
		assert.Equal(t, fmt.Sprintf("pay:%s:confirm:1", pay.ID), gw.confirmCalls[0].IdempotencyKey)

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSucceeded, stored.Status)
		assert.Equal(t, "pm_tok_visa", stored.MethodRef)
		require.Len(t, repo.histories[pay.ID], 1)
		assert.Equal(t, payment.StatusSucceeded, repo.histories[pay.ID][0].ToStatus)
	})

	t.Run("declined confirmation records the failure", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusPending)
		gw := &fakeGateway{confirmResult: &payment.IntentResult{
			IntentID:       pay.IntentID,
			Status:         payment.IntentFailed,
			FailureCode:    "card_declined",
			FailureMessage: "Your card was declined.",
		}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		resp, err := orch.Confirm(ctx, pay.ID, ConfirmRequest{MethodRef: "pm_tok_visa"})
		require.NoError(t, err)

		assert.Equal(t, string(payment.StatusFailed), resp.Status)
		assert.Equal(t, "card_declined", resp.FailureCode)
	})

	t.Run("fully closed payment rejects confirmation without a gateway call", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusFailed)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.Confirm(ctx, pay.ID, ConfirmRequest{MethodRef: "pm_tok_visa"})

		var te *shared.TerminalStateError
		require.ErrorAs(t, err, &te)
		assert.Empty(t, gw.confirmCalls)
	})

	t.Run("unchanged status still persists the method ref", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		gw := &fakeGateway{confirmResult: &payment.IntentResult{IntentID: pay.IntentID, Status: payment.IntentProcessing}}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.Confirm(ctx, pay.ID, ConfirmRequest{MethodRef: "pm_tok_visa"})
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, "pm_tok_visa", stored.MethodRef)
		assert.Empty(t, repo.histories[pay.ID])
	})
}

func TestOrchestrator_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("partial refund with a cumulative idempotency key", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		resp, err := orch.Refund(ctx, pay.ID, RefundRequest{Amount: decimal.NewFromInt(280), Reason: "goodwill"}, "support")
		require.NoError(t, err)

		assert.Equal(t, string(payment.StatusPartiallyRefunded), resp.Status)
		assert.True(t, resp.RefundAmount.Equal(decimal.NewFromInt(280)))
		require.Len(t, gw.refundCalls, 1)
		assert.Equal(t, fmt.Sprintf("pay:%s:refund:280", pay.ID), gw.refundCalls[0].IdempotencyKey)
	})

	t.Run("non-refundable payment never reaches the gateway", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusPending)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.Refund(ctx, pay.ID, RefundRequest{Amount: decimal.NewFromInt(10)}, "support")
		assert.Error(t, err)
		assert.Empty(t, gw.refundCalls)
	})

	t.Run("amount above remaining is rejected", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		_, err := orch.Refund(ctx, pay.ID, RefundRequest{Amount: decimal.NewFromInt(44281)}, "support")
		assert.Error(t, err)
		assert.Empty(t, gw.refundCalls)
	})
}

func TestOrchestrator_RefundAll(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds the remaining amount", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		require.NoError(t, orch.RefundAll(ctx, pay.ID, "order cancelled", "system"))

		require.Len(t, gw.refundCalls, 1)
		assert.True(t, gw.refundCalls[0].Amount.Equal(decimal.NewFromInt(44280)))

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, stored.Status)
	})

	t.Run("non-refundable payment is a no-op", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusFailed)
		gw := &fakeGateway{}
		orch := newTestOrchestrator(repo, gw, newFakeDeduper())

		require.NoError(t, orch.RefundAll(ctx, pay.ID, "order cancelled", "system"))
		assert.Empty(t, gw.refundCalls)
	})
}

func TestOrchestrator_ReconcileEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("dedup fast path drops a repeated event", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		deduper := newFakeDeduper()
		orch := newTestOrchestrator(repo, &fakeGateway{}, deduper)

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		deduper.seen[event.ID] = true

		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, "duplicate", result.Outcome)
		assert.False(t, result.Applied)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusProcessing, stored.Status)
	})

	t.Run("event for an unknown intent is acknowledged and dropped", func(t *testing.T) {
		orch := newTestOrchestrator(newFakePaymentRepo(), &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, statusEvent("pi_foreign", payment.IntentSucceeded))
		require.NoError(t, err)
		assert.Equal(t, "unknown_intent", result.Outcome)
		assert.False(t, result.Applied)
	})

	t.Run("history check drops a replay even when the cache missed it", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		event := statusEvent(pay.IntentID, payment.IntentSucceeded)

		from := payment.StatusProcessing
		row := payment.NewPaymentStatusHistory(pay.ID, &from, payment.StatusSucceeded, "gateway", "").WithEventID(event.ID)
		repo.histories[pay.ID] = append(repo.histories[pay.ID], *row)

		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, "duplicate", result.Outcome)
	})

	t.Run("applies a succeeded event and tags the history row", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)

		assert.True(t, result.Applied)
		assert.Equal(t, "applied", result.Outcome)
		assert.Equal(t, pay.ID.String(), result.PaymentID)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusSucceeded, stored.Status)
		require.Len(t, repo.histories[pay.ID], 1)
		assert.Equal(t, event.ID, repo.histories[pay.ID][0].EventID)
	})

	t.Run("failed event records the decline details", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		event := statusEvent(pay.IntentID, payment.IntentFailed)
		event.FailureCode = "card_declined"
		event.FailureMessage = "Your card was declined."

		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Applied)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusFailed, stored.Status)
		assert.Equal(t, "card_declined", stored.FailureCode)
	})

	t.Run("fully closed payment ignores late events", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusFailed)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)
		assert.Equal(t, "ignored_closed", result.Outcome)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusFailed, stored.Status)
	})

	t.Run("out-of-order event loses to the later state", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, statusEvent(pay.IntentID, payment.IntentProcessing))
		require.NoError(t, err)
		assert.Equal(t, "ignored_stale", result.Outcome)
	})

	t.Run("event matching the current status is a no-op", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, statusEvent(pay.IntentID, payment.IntentProcessing))
		require.NoError(t, err)
		assert.Equal(t, "no_change", result.Outcome)
		assert.False(t, result.Applied)
	})

	t.Run("refund event applies only the delta over local state", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusPartiallyRefunded)
		pay.RefundAmount = decimal.NewFromInt(280)
		repo.add(pay)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		event.Type = "charge.refunded"
		event.AmountRefunded = decimal.NewFromInt(1000)

		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, result.Applied)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.True(t, stored.RefundAmount.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, payment.StatusPartiallyRefunded, stored.Status)
	})

	t.Run("cumulative refund covering the full amount closes the payment", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusSucceeded)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		event.Type = "charge.refunded"
		event.AmountRefunded = decimal.NewFromInt(44280)

		_, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusRefunded, stored.Status)
	})

	t.Run("refund event not ahead of local state is a no-op", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusPartiallyRefunded)
		pay.RefundAmount = decimal.NewFromInt(280)
		repo.add(pay)
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		event.Type = "charge.refunded"
		event.AmountRefunded = decimal.NewFromInt(280)

		result, err := orch.ReconcileEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, "no_change", result.Outcome)
	})

	t.Run("clears the dedup mark when applying fails", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		repo.updateErrs = []error{errors.New("db down")}
		deduper := newFakeDeduper()
		orch := newTestOrchestrator(repo, &fakeGateway{}, deduper)

		event := statusEvent(pay.IntentID, payment.IntentSucceeded)
		_, err := orch.ReconcileEvent(ctx, event)
		require.Error(t, err)

		assert.Equal(t, []string{event.ID}, deduper.unmarked)
		assert.False(t, deduper.seen[event.ID])
	})

	t.Run("retries once against fresh state on a version conflict", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		repo.updateErrs = []error{shared.ErrConcurrencyConflict}
		orch := newTestOrchestrator(repo, &fakeGateway{}, newFakeDeduper())

		result, err := orch.ReconcileEvent(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)
		assert.Equal(t, "applied", result.Outcome)

		stored, _ := repo.FindByID(ctx, pay.ID)
		assert.Equal(t, payment.StatusSucceeded, stored.Status)
	})

	t.Run("cache outage falls through to the authoritative path", func(t *testing.T) {
		repo := newFakePaymentRepo()
		pay := seedPayment(t, repo, payment.StatusProcessing)
		deduper := newFakeDeduper()
		deduper.markErr = errors.New("redis down")
		orch := newTestOrchestrator(repo, &fakeGateway{}, deduper)

		result, err := orch.ReconcileEvent(ctx, statusEvent(pay.IntentID, payment.IntentSucceeded))
		require.NoError(t, err)
		assert.Equal(t, "applied", result.Outcome)
		assert.Empty(t, deduper.unmarked)
	})
}
