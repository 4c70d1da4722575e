package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	txn, err := NewTransaction("t1", "u1", 500, TypeDeposit, MethodQR, "DEP 500 u1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, txn.Status)
	assert.Equal(t, int64(500), txn.Delta())

	_, err = NewTransaction("t1", "u1", 0, TypeDeposit, MethodQR, "")
	assert.ErrorIs(t, err, ErrTransactionAmountInvalid)

	_, err = NewTransaction("t1", "u1", 10, "transfer", MethodQR, "")
	assert.ErrorIs(t, err, ErrTransactionTypeUnknown)

	_, err = NewTransaction("", "u1", 10, TypeDeposit, MethodQR, "")
	assert.ErrorIs(t, err, ErrTransactionIDEmpty)
}

func TestTransaction_Resolve(t *testing.T) {
	t.Run("Complete", func(t *testing.T) {
		txn, err := NewTransaction("t1", "u1", 70, TypeWithdraw, MethodBanking, "")
		require.NoError(t, err)

		require.NoError(t, txn.Complete("paid out"))
		assert.Equal(t, StatusCompleted, txn.Status)
		assert.Equal(t, "paid out", txn.AdminNote)
		assert.Equal(t, int64(-70), txn.Delta())

		assert.ErrorIs(t, txn.Complete(""), ErrInvalidTransition)
		assert.ErrorIs(t, txn.Cancel(""), ErrInvalidTransition)
	})

	t.Run("Cancel", func(t *testing.T) {
		txn, err := NewTransaction("t1", "u1", 70, TypeDeposit, MethodQR, "")
		require.NoError(t, err)

		require.NoError(t, txn.Cancel(""))
		assert.Equal(t, StatusCancelled, txn.Status)
		assert.Empty(t, txn.AdminNote)
		assert.ErrorIs(t, txn.Complete("late"), ErrInvalidTransition)
	})
}
