package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/storage"
)

func seedUser(t *testing.T, s *Storage, id string, balance int64) {
	t.Helper()

	usr, err := users.NewUser(id, users.RoleUser)
	require.NoError(t, err)

	require.NoError(t, s.CreateUser(context.Background(), usr))
	require.NoError(t, s.IncrementBalance(context.Background(), id, balance))
}

func seedAccount(t *testing.T, s *Storage, id, sellerID string) {
	t.Helper()

	acc, err := accounts.NewAccount(id, sellerID, "Main", 500, 10, accounts.Credentials{Username: "login", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, s.CreateAccount(context.Background(), acc))
}

func TestStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewStorage(WithClock(func() time.Time { return now }))

	usr, err := users.NewUser("u1", users.RoleUser)
	require.NoError(t, err)

	require.NoError(t, s.CreateUser(ctx, usr))
	assert.Equal(t, now, usr.CreatedAt)

	assert.ErrorIs(t, s.CreateUser(ctx, usr), storage.ErrUserAlreadyExists)

	_, err = s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestStorage_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	seedAccount(t, s, "acc1", "seller")

	acc, err := s.GetAccount(ctx, "acc1")
	require.NoError(t, err)

	acc.Status = accounts.StatusSold

	stored, err := s.GetAccount(ctx, "acc1")
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusAvailable, stored.Status)
}

func TestStorage_RunTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("CommitsAllWrites", func(t *testing.T) {
		s := NewStorage()
		seedUser(t, s, "buyer", 100)
		seedAccount(t, s, "acc1", "seller")

		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.IncrementBalance(ctx, "buyer", -60); err != nil {
				return err
			}

			return tx.SetAccountStatus(ctx, "acc1", accounts.StatusSold)
		})
		require.NoError(t, err)

		usr, err := s.GetUser(ctx, "buyer")
		require.NoError(t, err)
		assert.Equal(t, int64(40), usr.Balance)

		acc, err := s.GetAccount(ctx, "acc1")
		require.NoError(t, err)
		assert.Equal(t, accounts.StatusSold, acc.Status)
	})

	t.Run("ErrorDiscardsWrites", func(t *testing.T) {
		s := NewStorage()
		seedUser(t, s, "buyer", 100)
		errBody := errors.New("body failed")

		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.IncrementBalance(ctx, "buyer", -60); err != nil {
				return err
			}

			return errBody
		})
		require.ErrorIs(t, err, errBody)

		usr, err := s.GetUser(ctx, "buyer")
		require.NoError(t, err)
		assert.Equal(t, int64(100), usr.Balance)
	})

	t.Run("ReadsOwnWrites", func(t *testing.T) {
		s := NewStorage()
		seedUser(t, s, "buyer", 100)

		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := tx.IncrementBalance(ctx, "buyer", 25); err != nil {
				return err
			}

			usr, err := tx.GetUser(ctx, "buyer")
			if err != nil {
				return err
			}

			assert.Equal(t, int64(125), usr.Balance)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("RerunsOnConflict", func(t *testing.T) {
		s := NewStorage()
		seedUser(t, s, "buyer", 100)

		runs := 0

		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			runs++

			if _, err := tx.GetUser(ctx, "buyer"); err != nil {
				return err
			}

			if runs == 1 {
				// Concurrent writer commits between our read and our commit.
				require.NoError(t, s.IncrementBalance(ctx, "buyer", 1))
			}

			return tx.IncrementBalance(ctx, "buyer", 10)
		})
		require.NoError(t, err)
		assert.Equal(t, 2, runs)

		usr, err := s.GetUser(ctx, "buyer")
		require.NoError(t, err)
		assert.Equal(t, int64(111), usr.Balance)
	})

	t.Run("GivesUpWithConflict", func(t *testing.T) {
		s := NewStorage(WithMaxAttempts(2))
		seedUser(t, s, "buyer", 100)

		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			if _, err := tx.GetUser(ctx, "buyer"); err != nil {
				return err
			}

			require.NoError(t, s.IncrementBalance(ctx, "buyer", 1))

			return nil
		})
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("CreateOrderTwice", func(t *testing.T) {
		s := NewStorage()

		ord, err := orders.NewOrder("o1", "buyer", 10, orders.OrderStatusPending, []orders.Item{
			{AccountID: "acc1", TransactionType: orders.TransactionTypePurchase, Price: 10},
		})
		require.NoError(t, err)

		create := func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateOrder(ctx, ord)
		}

		require.NoError(t, s.RunTransaction(ctx, create))
		assert.ErrorIs(t, s.RunTransaction(ctx, create), storage.ErrOrderAlreadyExists)
	})
}

func TestStorage_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(WithMaxAttempts(1000))
	seedUser(t, s, "u1", 0)

	const workers = 50

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
				if _, err := tx.GetUser(ctx, "u1"); err != nil {
					return err
				}

				return tx.IncrementBalance(ctx, "u1", 2)
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	usr, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*workers), usr.Balance)
}

func TestStorage_GetOrdersByAccountID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	for _, tc := range []struct {
		id     string
		status orders.OrderStatus
		acc    string
	}{
		{"o1", orders.OrderStatusPaid, "acc1"},
		{"o2", orders.OrderStatusCancelled, "acc1"},
		{"o3", orders.OrderStatusRenting, "acc2"},
	} {
		ord, err := orders.NewOrder(tc.id, "buyer", 10, tc.status, []orders.Item{
			{AccountID: tc.acc, TransactionType: orders.TransactionTypeRent, Price: 10, RentDurationHours: 1},
		})
		require.NoError(t, err)

		require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateOrder(ctx, ord)
		}))
	}

	ords, err := s.GetOrdersByAccountID(ctx, "acc1", orders.ActiveStatuses...)
	require.NoError(t, err)
	require.Len(t, ords, 1)
	assert.Equal(t, "o1", ords[0].ID)

	all, err := s.GetOrdersByAccountID(ctx, "acc1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
