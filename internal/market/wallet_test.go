package market

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/notify"
)

func TestCreateTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 0)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{
		Amount: 500,
		Type:   wallet.TypeDeposit,
	})
	require.NoError(t, err)

	assert.Equal(t, wallet.StatusPending, txn.Status)
	assert.Equal(t, wallet.MethodQR, txn.Method)
	assert.True(t, strings.HasPrefix(txn.TransactionCode, "DEP 500 U "))
	assert.Equal(t, int64(0), f.balance(t, "U"))
	assert.Equal(t, []notify.Kind{notify.KindTransactionCreated}, f.events.kinds())

	withCode, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{
		Amount:          100,
		Type:            wallet.TypeWithdraw,
		Method:          wallet.MethodBanking,
		TransactionCode: "BANK-42",
	})
	require.NoError(t, err)
	assert.Equal(t, "BANK-42", withCode.TransactionCode)

	_, err = f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{UserID: "V", Amount: 1, Type: wallet.TypeDeposit})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 0, Type: wallet.TypeDeposit})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 10, Type: "gift"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.engine.CreateTransaction(ctx, f.admin(), CreateTransactionRequest{UserID: "ghost", Amount: 10, Type: wallet.TypeDeposit})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.CreateTransaction(ctx, f.anonymous(), CreateTransactionRequest{Amount: 10, Type: wallet.TypeDeposit})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestApproveTransaction_Withdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 200000)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{
		Amount: 50000,
		Type:   wallet.TypeWithdraw,
		Method: wallet.MethodBanking,
	})
	require.NoError(t, err)

	approved, err := f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "sent")
	require.NoError(t, err)

	assert.Equal(t, wallet.StatusCompleted, approved.Status)
	assert.Equal(t, "sent", approved.AdminNote)
	assert.Equal(t, int64(150000), f.balance(t, "U"))

	_, err = f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "again")
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, int64(150000), f.balance(t, "U"))

	stored, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "sent", stored.AdminNote)
}

func TestApproveTransaction_Deposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 0)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 700, Type: wallet.TypeDeposit})
	require.NoError(t, err)

	_, err = f.engine.ApproveTransaction(ctx, f.as("U"), txn.ID, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(700), f.balance(t, "U"))
	assert.Contains(t, f.events.kinds(), notify.KindTransactionApproved)
}

func TestApproveTransaction_WithdrawExceedsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 100)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 101, Type: wallet.TypeWithdraw})
	require.NoError(t, err)

	_, err = f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	stored, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusPending, stored.Status)
	assert.Equal(t, int64(100), f.balance(t, "U"))
}

func TestApproveTransaction_ConcurrentReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 0)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 300, Type: wallet.TypeDeposit})
	require.NoError(t, err)

	const callers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()

				return
			}

			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(300), f.balance(t, "U"))
}

func TestRejectTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 0)

	txn, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 300, Type: wallet.TypeDeposit})
	require.NoError(t, err)

	rejected, err := f.engine.RejectTransaction(ctx, f.admin(), txn.ID, "no transfer found")
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusCancelled, rejected.Status)

	_, err = f.engine.ApproveTransaction(ctx, f.admin(), txn.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, int64(0), f.balance(t, "U"))

	_, err = f.engine.RejectTransaction(ctx, f.admin(), "ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 0)
	f.user(t, "V", 0)

	first, err := f.engine.CreateTransaction(ctx, f.as("U"), CreateTransactionRequest{Amount: 1, Type: wallet.TypeDeposit})
	require.NoError(t, err)

	_, err = f.engine.CreateTransaction(ctx, f.as("V"), CreateTransactionRequest{Amount: 2, Type: wallet.TypeDeposit})
	require.NoError(t, err)

	_, err = f.engine.ApproveTransaction(ctx, f.admin(), first.ID, "")
	require.NoError(t, err)

	mine, err := f.engine.ListMyTransactions(ctx, f.as("U"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	pending, err := f.engine.ListPendingTransactions(ctx, f.admin())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "V", pending[0].UserID)

	_, err = f.engine.ListPendingTransactions(ctx, f.as("U"))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "U", 50)

	require.NoError(t, f.engine.UpdateBalance(ctx, f.admin(), "U", -20))
	require.NoError(t, f.engine.UpdateBalance(ctx, f.admin(), "U", 5))
	assert.Equal(t, int64(35), f.balance(t, "U"))

	assert.ErrorIs(t, f.engine.UpdateBalance(ctx, f.admin(), "U", 0), ErrInvalidArgument)
	assert.ErrorIs(t, f.engine.UpdateBalance(ctx, f.admin(), "ghost", 1), ErrNotFound)
	assert.ErrorIs(t, f.engine.UpdateBalance(ctx, f.as("U"), "U", 1000), ErrUnauthorized)
}
