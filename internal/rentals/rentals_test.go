package rentals

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/storage/inmemory"
)

type env struct {
	store  *inmemory.Storage
	engine *market.Engine
	now    atomic.Pointer[time.Time]
}

func newEnv() *env {
	e := &env{}

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e.now.Store(&start)

	clock := func() time.Time { return *e.now.Load() }

	e.store = inmemory.NewStorage(inmemory.WithClock(clock), inmemory.WithMaxAttempts(50))
	e.engine = market.NewEngine(market.WithClock(clock))

	return e
}

func (e *env) as(id string) market.LedgerContext {
	return market.NewLedgerContext(e.store, users.Identity{UserID: id, Role: users.RoleUser})
}

func (e *env) rent(t *testing.T, hours int) (string, string) {
	t.Helper()

	ctx := context.Background()

	view, err := e.engine.ListAccount(ctx, e.as("seller"), market.ListAccountRequest{
		Title:            "Main",
		RentPricePerHour: 10,
		Username:         "login",
		Password:         "pw",
	})
	require.NoError(t, err)

	ord, err := e.engine.CreateOrder(ctx, e.as("buyer"), market.CreateOrderRequest{
		Status: orders.OrderStatusPaid,
		Items: []market.ItemRequest{
			{AccountID: view.ID, TransactionType: orders.TransactionTypeRent, RentDurationHours: hours},
		},
	})
	require.NoError(t, err)

	return view.ID, ord.ID
}

func TestSweeper_Sweep(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	short, shortOrder := e.rent(t, 1)
	long, _ := e.rent(t, 5)
	third, thirdOrder := e.rent(t, 2)

	sweeper := New(e.store, e.engine, WithPoolSize(2))

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	next := e.now.Load().Add(3 * time.Hour)
	e.now.Store(&next)

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, tc := range []struct {
		accountID string
		want      accounts.Status
	}{
		{short, accounts.StatusAvailable},
		{third, accounts.StatusAvailable},
		{long, accounts.StatusRenting},
	} {
		acc, err := e.store.GetAccount(ctx, tc.accountID)
		require.NoError(t, err)
		assert.Equal(t, tc.want, acc.Status)
	}

	for _, id := range []string{shortOrder, thirdOrder} {
		ord, err := e.store.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, orders.OrderStatusCompleted, ord.Status)
	}

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_Run(t *testing.T) {
	e := newEnv()

	t.Run("StopsOnCancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)

		go func() {
			done <- New(e.store, e.engine, WithSchedule("@every 1h")).Run(ctx)
		}()

		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("sweeper did not stop")
		}
	})

	t.Run("InvalidSchedule", func(t *testing.T) {
		err := New(e.store, e.engine, WithSchedule("every now and then")).Run(context.Background())
		assert.Error(t, err)
	})
}
