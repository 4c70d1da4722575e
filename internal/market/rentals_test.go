package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/notify"
)

func TestRentalExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "S", 0)
	f.user(t, "B", 0)
	x := f.list(t, "S", 0, 10)
	y := f.list(t, "S", 100, 0)

	rent, err := f.engine.CreateOrder(ctx, f.as("B"), CreateOrderRequest{
		Status: orders.OrderStatusPaid,
		Items:  []ItemRequest{{AccountID: x, TransactionType: orders.TransactionTypeRent, RentDurationHours: 2}},
	})
	require.NoError(t, err)

	_, err = f.engine.CreateOrder(ctx, f.as("B"), CreateOrderRequest{
		Status: orders.OrderStatusPaid,
		Items:  []ItemRequest{{AccountID: y, TransactionType: orders.TransactionTypePurchase}},
	})
	require.NoError(t, err)

	expired, err := f.engine.ExpiredRentals(ctx, f.admin())
	require.NoError(t, err)
	assert.Empty(t, expired)

	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.admin(), rent.ID), ErrAlreadyProcessed)
	assert.Equal(t, accounts.StatusRenting, f.accountStatus(t, x))

	f.advance(2 * time.Hour)

	expired, err = f.engine.ExpiredRentals(ctx, f.admin())
	require.NoError(t, err)
	assert.Equal(t, []string{rent.ID}, expired)

	require.NoError(t, f.engine.CompleteRental(ctx, f.admin(), rent.ID))
	assert.Equal(t, accounts.StatusAvailable, f.accountStatus(t, x))
	assert.Equal(t, accounts.StatusSold, f.accountStatus(t, y))
	assert.Contains(t, f.events.kinds(), notify.KindRentalExpired)

	ord, err := f.store.GetOrder(ctx, rent.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderStatusCompleted, ord.Status)

	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.admin(), rent.ID), ErrAlreadyProcessed)

	expired, err = f.engine.ExpiredRentals(ctx, f.admin())
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestRentalExpiry_MixedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "S", 0)
	f.user(t, "B", 0)
	x := f.list(t, "S", 0, 10)
	y := f.list(t, "S", 100, 0)

	ord, err := f.engine.CreateOrder(ctx, f.as("B"), CreateOrderRequest{
		Status: orders.OrderStatusPaid,
		Items: []ItemRequest{
			{AccountID: x, TransactionType: orders.TransactionTypeRent, RentDurationHours: 1},
			{AccountID: y, TransactionType: orders.TransactionTypePurchase},
		},
	})
	require.NoError(t, err)

	f.advance(1000 * time.Hour)

	expired, err := f.engine.ExpiredRentals(ctx, f.admin())
	require.NoError(t, err)
	assert.Equal(t, []string{ord.ID}, expired)

	require.NoError(t, f.engine.CompleteRental(ctx, f.admin(), ord.ID))
	assert.Equal(t, accounts.StatusAvailable, f.accountStatus(t, x))
	assert.Equal(t, accounts.StatusSold, f.accountStatus(t, y))

	_, sees, err := f.engine.GetAccountCredentials(ctx, f.as("B"), x)
	require.NoError(t, err)
	assert.False(t, sees)

	_, sees, err = f.engine.GetAccountCredentials(ctx, f.as("B"), y)
	require.NoError(t, err)
	assert.True(t, sees)

	stored, err := f.store.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderStatusPaid, stored.Status)

	expired, err = f.engine.ExpiredRentals(ctx, f.admin())
	require.NoError(t, err)
	assert.Empty(t, expired)

	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.admin(), ord.ID), ErrAlreadyProcessed)
}

func TestRentalExpiry_Staggered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "S", 0)
	f.user(t, "B", 0)
	x := f.list(t, "S", 0, 10)
	z := f.list(t, "S", 0, 10)

	ord, err := f.engine.CreateOrder(ctx, f.as("B"), CreateOrderRequest{
		Status: orders.OrderStatusPaid,
		Items: []ItemRequest{
			{AccountID: x, TransactionType: orders.TransactionTypeRent, RentDurationHours: 1},
			{AccountID: z, TransactionType: orders.TransactionTypeRent, RentDurationHours: 3},
		},
	})
	require.NoError(t, err)

	f.advance(2 * time.Hour)

	require.NoError(t, f.engine.CompleteRental(ctx, f.admin(), ord.ID))
	assert.Equal(t, accounts.StatusAvailable, f.accountStatus(t, x))
	assert.Equal(t, accounts.StatusRenting, f.accountStatus(t, z))

	stored, err := f.store.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderStatusPaid, stored.Status)

	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.admin(), ord.ID), ErrAlreadyProcessed)

	f.advance(time.Hour)

	require.NoError(t, f.engine.CompleteRental(ctx, f.admin(), ord.ID))
	assert.Equal(t, accounts.StatusAvailable, f.accountStatus(t, z))

	stored, err = f.store.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderStatusCompleted, stored.Status)
}

func TestRentalExpiry_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ExpiredRentals(ctx, f.as("B"))
	require.ErrorIs(t, err, ErrUnauthorized)

	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.as("B"), "o1"), ErrUnauthorized)
	require.ErrorIs(t, f.engine.CompleteRental(ctx, f.admin(), "ghost"), ErrNotFound)
}
