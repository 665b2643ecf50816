package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/payment"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/motorline/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPayment(t *testing.T, repo *GormPaymentRepository, orderID uuid.UUID, intentID string) *payment.Payment {
	t.Helper()
	pay, err := payment.NewPayment(orderID, intentID, valueobject.NewMoneyUSDFromFloat(44280), map[string]string{"order_number": "ORD-20260830-AAAAAA"})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), pay, payment.NewInitialPaymentHistory(pay.ID, "system")))
	return pay
}

func TestGormPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("persists payment and initial history", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_create_1")

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, stored.Status)
		assert.Equal(t, "pi_create_1", stored.IntentID)
		assert.True(t, stored.Amount.Equal(decimal.NewFromInt(44280)))
		assert.True(t, stored.RefundAmount.IsZero())
		assert.Equal(t, "ORD-20260830-AAAAAA", stored.Metadata["order_number"])

		rows, err := repo.FindHistory(ctx, pay.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].FromStatus)
		assert.Equal(t, payment.StatusPending, rows[0].ToStatus)
	})

	t.Run("duplicate intent id yields already exists", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		createPayment(t, repo, uuid.New(), "pi_dup")

		dup, err := payment.NewPayment(uuid.New(), "pi_dup", valueobject.NewMoneyUSDFromFloat(100), nil)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup, nil), shared.ErrAlreadyExists)
	})

	t.Run("lookup by intent id", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_lookup")

		stored, err := repo.FindByIntentID(ctx, "pi_lookup")
		require.NoError(t, err)
		assert.Equal(t, pay.ID, stored.ID)

		_, err = repo.FindByIntentID(ctx, "pi_missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormPaymentRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the transition with its history row", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_update_1")

		history, err := pay.ApplyStatus(payment.StatusProcessing, "system", "gateway confirmation")
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, pay, history))

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusProcessing, stored.Status)
		assert.Equal(t, 2, stored.Version)

		rows, err := repo.FindHistory(ctx, pay.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("nil history updates the row without an audit entry", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_update_2")
		pay.SetMethodRef("pm_tok_visa")

		require.NoError(t, repo.Update(ctx, pay, nil))

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, "pm_tok_visa", stored.MethodRef)

		rows, err := repo.FindHistory(ctx, pay.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("stale version yields a concurrency conflict", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_conflict")

		winner, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		loser, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)

		history, err := winner.ApplyStatus(payment.StatusSucceeded, "gateway", "")
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, winner, history))

		history, err = loser.ApplyStatus(payment.StatusFailed, "gateway", "")
		require.NoError(t, err)
		err = repo.Update(ctx, loser, history)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, loser.Version)

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSucceeded, stored.Status)
	})

	t.Run("refund amount round-trips", func(t *testing.T) {
		repo := NewGormPaymentRepository(newTestDB(t))
		pay := createPayment(t, repo, uuid.New(), "pi_refund")
		pay.Status = payment.StatusSucceeded
		require.NoError(t, repo.Update(ctx, pay, nil))

		history, err := pay.AddRefund(decimal.NewFromInt(280), "support", "goodwill")
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, pay, history))

		stored, err := repo.FindByID(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPartiallyRefunded, stored.Status)
		assert.True(t, stored.RefundAmount.Equal(decimal.NewFromInt(280)))
		assert.True(t, stored.RemainingRefundable().Equal(decimal.NewFromInt(44000)))
	})
}

func TestGormPaymentRepository_FindByOrderID(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPaymentRepository(newTestDB(t))
	orderID := uuid.New()

	first := createPayment(t, repo, orderID, "pi_attempt_1")
	time.Sleep(5 * time.Millisecond)
	second := createPayment(t, repo, orderID, "pi_attempt_2")
	createPayment(t, repo, uuid.New(), "pi_other_order")

	pays, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, pays, 2)
	assert.Equal(t, first.ID, pays[0].ID)
	assert.Equal(t, second.ID, pays[1].ID)

	latest, err := repo.FindLatestByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = repo.FindLatestByOrderID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormPaymentRepository_HistoryHasEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPaymentRepository(newTestDB(t))
	pay := createPayment(t, repo, uuid.New(), "pi_events")

	history, err := pay.ApplyStatus(payment.StatusSucceeded, "gateway", "gateway event payment_intent.succeeded")
	require.NoError(t, err)
	history.WithEventID("evt_123")
	require.NoError(t, repo.Update(ctx, pay, history))

	seen, err := repo.HistoryHasEvent(ctx, pay.ID, "evt_123")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = repo.HistoryHasEvent(ctx, pay.ID, "evt_999")
	require.NoError(t, err)
	assert.False(t, seen)

	// Rows without an event id never match an empty lookup
	seen, err = repo.HistoryHasEvent(ctx, pay.ID, "")
	require.NoError(t, err)
	assert.False(t, seen)
}
