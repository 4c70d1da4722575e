package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
)

var _ storage.Tx = (*memTx)(nil)

type memTx struct {
	mu  *sync.RWMutex
	now time.Time

	users        *txTable[users.User]
	accounts     *txTable[accounts.Account]
	orders       *txTable[orders.Order]
	transactions *txTable[wallet.Transaction]
}

func (t *memTx) valid() bool {
	return t.users.valid() && t.accounts.valid() && t.orders.valid() && t.transactions.valid()
}

func (t *memTx) GetUser(_ context.Context, id string) (*users.User, error) {
	usr := t.users.load(t.mu, id)
	if usr == nil {
		return nil, storage.ErrUserNotFound
	}

	return cloneUser(usr), nil
}

func (t *memTx) IncrementBalance(_ context.Context, userID string, delta int64) error {
	usr := t.users.load(t.mu, userID)
	if usr == nil {
		return storage.ErrUserNotFound
	}

	usr.Balance += delta

	t.users.store(userID, usr)

	return nil
}

func (t *memTx) GetAccount(_ context.Context, id string) (*accounts.Account, error) {
	acc := t.accounts.load(t.mu, id)
	if acc == nil {
		return nil, storage.ErrAccountNotFound
	}

	return cloneAccount(acc), nil
}

func (t *memTx) SetAccountStatus(_ context.Context, id string, status accounts.Status) error {
	acc := t.accounts.load(t.mu, id)
	if acc == nil {
		return storage.ErrAccountNotFound
	}

	acc.Status = status
	acc.UpdatedAt = t.now

	t.accounts.store(id, acc)

	return nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	ord := t.orders.load(t.mu, id)
	if ord == nil {
		return nil, storage.ErrOrderNotFound
	}

	return cloneOrder(ord), nil
}

func (t *memTx) CreateOrder(_ context.Context, ord *orders.Order) error {
	if t.orders.load(t.mu, ord.ID) != nil {
		return storage.ErrOrderAlreadyExists
	}

	ord.CreatedAt = t.now
	ord.UpdatedAt = t.now

	t.orders.store(ord.ID, cloneOrder(ord))

	return nil
}

func (t *memTx) UpdateOrder(_ context.Context, ord *orders.Order) error {
	if t.orders.load(t.mu, ord.ID) == nil {
		return storage.ErrOrderNotFound
	}

	ord.UpdatedAt = t.now

	t.orders.store(ord.ID, cloneOrder(ord))

	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*wallet.Transaction, error) {
	txn := t.transactions.load(t.mu, id)
	if txn == nil {
		return nil, storage.ErrTransactionNotFound
	}

	return cloneTransaction(txn), nil
}

func (t *memTx) CreateTransaction(_ context.Context, txn *wallet.Transaction) error {
	if t.transactions.load(t.mu, txn.ID) != nil {
		return storage.ErrTransactionAlreadyExists
	}

	txn.CreatedAt = t.now
	txn.UpdatedAt = t.now

	t.transactions.store(txn.ID, cloneTransaction(txn))

	return nil
}

func (t *memTx) UpdateTransaction(_ context.Context, txn *wallet.Transaction) error {
	if t.transactions.load(t.mu, txn.ID) == nil {
		return storage.ErrTransactionNotFound
	}

	txn.UpdatedAt = t.now

	t.transactions.store(txn.ID, cloneTransaction(txn))

	return nil
}
