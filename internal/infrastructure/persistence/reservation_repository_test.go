package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/motorline/backend/internal/domain/reservation"
	"github.com/motorline/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newReservationRepo(t *testing.T) (*GormReservationRepository, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewGormReservationRepository(db), db
}

func seedVehicle(t *testing.T, repo *GormReservationRepository, quantity int) uuid.UUID {
	t.Helper()
	vehicleID := uuid.New()
	require.NoError(t, repo.UpsertStock(context.Background(), vehicleID, quantity))
	return vehicleID
}

func newHold(t *testing.T, vehicleID uuid.UUID, holderID string, quantity int) *reservation.Reservation {
	t.Helper()
	hold, err := reservation.NewReservation(vehicleID, reservation.HolderCart, holderID, quantity, 15*time.Minute)
	require.NoError(t, err)
	return hold
}

func placeHold(t *testing.T, repo *GormReservationRepository, vehicleID uuid.UUID, holderID string, quantity int) *reservation.Reservation {
	t.Helper()
	hold := newHold(t, vehicleID, holderID, quantity)
	require.NoError(t, repo.CreateWithHold(context.Background(), hold))
	return hold
}

func TestGormReservationRepository_CreateWithHold(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock atomically with the insert", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)

		placeHold(t, repo, vehicleID, "cart-1", 2)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 2, stock.ReservedQuantity)
		assert.Equal(t, 3, stock.Available())
	})

	t.Run("unknown vehicle yields not found", func(t *testing.T) {
		repo, _ := newReservationRepo(t)

		err := repo.CreateWithHold(ctx, newHold(t, uuid.New(), "cart-1", 1))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("insufficient availability rejects the hold", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 3)
		placeHold(t, repo, vehicleID, "cart-1", 2)

		err := repo.CreateWithHold(ctx, newHold(t, vehicleID, "cart-2", 2))
		assert.ErrorIs(t, err, shared.ErrInsufficientInventory)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 2, stock.ReservedQuantity)
	})

	t.Run("concurrent holds never oversell", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.CreateWithHold(ctx, newHold(t, vehicleID, "cart-race", 1))
			}(i)
		}
		wg.Wait()

		granted := 0
		for _, err := range errs {
			if err == nil {
				granted++
			} else {
				assert.ErrorIs(t, err, shared.ErrInsufficientInventory)
			}
		}
		assert.Equal(t, 5, granted)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 5, stock.ReservedQuantity)
		assert.Zero(t, stock.Available())
	})
}

func TestGormReservationRepository_Consume(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("moves quantity from reserved to sold", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 2)
		orderID := uuid.New()

		applied, err := repo.Consume(ctx, hold.ID, orderID, now)
		require.NoError(t, err)
		assert.True(t, applied)

		stored, err := repo.FindByID(ctx, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StateConsumed, stored.State)
		assert.Equal(t, orderID, *stored.OrderID)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 0, stock.ReservedQuantity)
		assert.Equal(t, 2, stock.SoldQuantity)
	})

	t.Run("consuming again is a clean no-op", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 2)
		orderID := uuid.New()

		_, err := repo.Consume(ctx, hold.ID, orderID, now)
		require.NoError(t, err)

		applied, err := repo.Consume(ctx, hold.ID, orderID, now)
		require.NoError(t, err)
		assert.False(t, applied)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 2, stock.SoldQuantity)
	})

	t.Run("expired hold refuses consumption", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 1)

		_, err := repo.Consume(ctx, hold.ID, uuid.New(), hold.ExpiresAt.Add(time.Second))
		assert.ErrorIs(t, err, shared.NewDomainError("RESERVATION_EXPIRED", ""))
	})

	t.Run("released hold refuses consumption", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 1)
		_, err := repo.Release(ctx, hold.ID, now)
		require.NoError(t, err)

		_, err = repo.Consume(ctx, hold.ID, uuid.New(), now)

		var ite *shared.InvalidTransitionError
		assert.ErrorAs(t, err, &ite)
	})

	t.Run("unknown hold yields not found", func(t *testing.T) {
		repo, _ := newReservationRepo(t)

		_, err := repo.Consume(ctx, uuid.New(), uuid.New(), now)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormReservationRepository_Release(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("returns quantity to availability", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 2)

		applied, err := repo.Release(ctx, hold.ID, now)
		require.NoError(t, err)
		assert.True(t, applied)

		stock, err := repo.FindStock(ctx, vehicleID)
		require.NoError(t, err)
		assert.Equal(t, 5, stock.Available())

		// Releasing again is a no-op
		applied, err = repo.Release(ctx, hold.ID, now)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("consumed hold refuses release", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 1)
		_, err := repo.Consume(ctx, hold.ID, uuid.New(), now)
		require.NoError(t, err)

		_, err = repo.Release(ctx, hold.ID, now)

		var ite *shared.InvalidTransitionError
		assert.ErrorAs(t, err, &ite)
	})
}

func TestGormReservationRepository_ExtendActive(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("pushes the deadline out from now", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)
		hold := placeHold(t, repo, vehicleID, "cart-1", 1)

		extended, err := repo.ExtendActive(ctx, hold.ID, 30*time.Minute, now)
		require.NoError(t, err)
		assert.True(t, extended)

		stored, err := repo.FindByID(ctx, hold.ID)
		require.NoError(t, err)
		assert.WithinDuration(t, now.Add(30*time.Minute), stored.ExpiresAt, time.Second)
	})

	t.Run("expired or settled holds are not extendable", func(t *testing.T) {
		repo, _ := newReservationRepo(t)
		vehicleID := seedVehicle(t, repo, 5)

		expired := placeHold(t, repo, vehicleID, "cart-1", 1)
		extended, err := repo.ExtendActive(ctx, expired.ID, time.Minute, expired.ExpiresAt.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, extended)

		released := placeHold(t, repo, vehicleID, "cart-2", 1)
		_, err = repo.Release(ctx, released.ID, now)
		require.NoError(t, err)
		extended, err = repo.ExtendActive(ctx, released.ID, time.Minute, now)
		require.NoError(t, err)
		assert.False(t, extended)
	})
}

func TestGormReservationRepository_SweepExpired(t *testing.T) {
	ctx := context.Background()

	repo, _ := newReservationRepo(t)
	vehicleID := seedVehicle(t, repo, 5)

	stale := placeHold(t, repo, vehicleID, "cart-1", 2)
	fresh := placeHold(t, repo, vehicleID, "cart-2", 1)
	_, err := repo.ExtendActive(ctx, fresh.ID, time.Hour, time.Now())
	require.NoError(t, err)

	swept, err := repo.SweepExpired(ctx, stale.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	stock, err := repo.FindStock(ctx, vehicleID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.ReservedQuantity)

	storedStale, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StateExpired, storedStale.State)
	storedFresh, err := repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StateActive, storedFresh.State)

	// Nothing else is past its deadline
	swept, err = repo.SweepExpired(ctx, stale.ExpiresAt.Add(2*time.Second))
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestGormReservationRepository_FindActiveByHolder(t *testing.T) {
	ctx := context.Background()

	repo, _ := newReservationRepo(t)
	vehicleID := seedVehicle(t, repo, 10)

	first := placeHold(t, repo, vehicleID, "cart-1", 1)
	second := placeHold(t, repo, vehicleID, "cart-1", 2)
	placeHold(t, repo, vehicleID, "cart-2", 1)

	released := placeHold(t, repo, vehicleID, "cart-1", 1)
	_, err := repo.Release(ctx, released.ID, time.Now())
	require.NoError(t, err)

	holds, err := repo.FindActiveByHolder(ctx, reservation.HolderCart, "cart-1")
	require.NoError(t, err)

	require.Len(t, holds, 2)
	ids := []uuid.UUID{holds[0].ID, holds[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestGormReservationRepository_UpsertStock(t *testing.T) {
	ctx := context.Background()

	repo, _ := newReservationRepo(t)
	vehicleID := seedVehicle(t, repo, 5)
	placeHold(t, repo, vehicleID, "cart-1", 2)

	// Restocking adjusts only the on-hand counter
	require.NoError(t, repo.UpsertStock(ctx, vehicleID, 8))

	stock, err := repo.FindStock(ctx, vehicleID)
	require.NoError(t, err)
	assert.Equal(t, 8, stock.StockQuantity)
	assert.Equal(t, 2, stock.ReservedQuantity)
	assert.Equal(t, 6, stock.Available())

	_, err = repo.FindStock(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
