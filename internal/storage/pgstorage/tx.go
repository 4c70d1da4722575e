package pgstorage

import (
	"context"
	"database/sql"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
)

var _ storage.Tx = (*pgTx)(nil)

// pgTx reads rows with FOR UPDATE so concurrent writers queue up behind the
// transaction instead of failing serialization at commit.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetUser(ctx context.Context, id string) (*users.User, error) {
	return selectUser(ctx, t.tx, id, true)
}

func (t *pgTx) IncrementBalance(ctx context.Context, userID string, delta int64) error {
	return incrementBalance(ctx, t.tx, userID, delta)
}

func (t *pgTx) GetAccount(ctx context.Context, id string) (*accounts.Account, error) {
	return selectAccount(ctx, t.tx, id, true)
}

func (t *pgTx) SetAccountStatus(ctx context.Context, id string, status accounts.Status) error {
	return updateAccountStatus(ctx, t.tx, id, status)
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	return selectOrder(ctx, t.tx, id, true)
}

func (t *pgTx) CreateOrder(ctx context.Context, ord *orders.Order) error {
	return insertOrder(ctx, t.tx, ord)
}

func (t *pgTx) UpdateOrder(ctx context.Context, ord *orders.Order) error {
	return updateOrder(ctx, t.tx, ord)
}

func (t *pgTx) GetTransaction(ctx context.Context, id string) (*wallet.Transaction, error) {
	return selectTransaction(ctx, t.tx, id, true)
}

func (t *pgTx) CreateTransaction(ctx context.Context, txn *wallet.Transaction) error {
	return insertTransaction(ctx, t.tx, txn)
}

func (t *pgTx) UpdateTransaction(ctx context.Context, txn *wallet.Transaction) error {
	return updateTransaction(ctx, t.tx, txn)
}
