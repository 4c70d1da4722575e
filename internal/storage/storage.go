package storage

import (
	"context"
	"errors"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
)

var (
	ErrUserAlreadyExists        = errors.New("user already exists")
	ErrUserNotFound             = errors.New("user not found")
	ErrAccountAlreadyExists     = errors.New("account already exists")
	ErrAccountNotFound          = errors.New("account not found")
	ErrOrderAlreadyExists       = errors.New("order already exists")
	ErrOrderNotFound            = errors.New("order not found")
	ErrTransactionAlreadyExists = errors.New("wallet transaction already exists")
	ErrTransactionNotFound      = errors.New("wallet transaction not found")

	// ErrConflict is returned when a transaction kept observing concurrent
	// writes until its attempts ran out.
	ErrConflict = errors.New("transaction conflict")
)

// Tx is the unit of work handed to a RunTransaction body. Reads observe the
// transaction's own writes; writes become visible to others only on commit.
type Tx interface {
	GetUser(ctx context.Context, id string) (*users.User, error)
	GetAccount(ctx context.Context, id string) (*accounts.Account, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	GetTransaction(ctx context.Context, id string) (*wallet.Transaction, error)

	SetAccountStatus(ctx context.Context, id string, status accounts.Status) error
	CreateOrder(ctx context.Context, order *orders.Order) error
	UpdateOrder(ctx context.Context, order *orders.Order) error
	CreateTransaction(ctx context.Context, txn *wallet.Transaction) error
	UpdateTransaction(ctx context.Context, txn *wallet.Transaction) error

	// IncrementBalance applies a signed delta to the user balance.
	IncrementBalance(ctx context.Context, userID string, delta int64) error
}

// TxFunc is a transaction body. It may run more than once and must not have
// side effects outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

type Transactor interface {
	// RunTransaction executes fn atomically. Bodies that lose an optimistic
	// concurrency race are re-run; after the attempts run out ErrConflict is
	// returned. Any other error from fn aborts the transaction and is
	// returned unchanged.
	RunTransaction(ctx context.Context, fn TxFunc) error
}

type UserStorage interface {
	CreateUser(ctx context.Context, usr *users.User) error
	GetUser(ctx context.Context, id string) (*users.User, error)
	IncrementBalance(ctx context.Context, userID string, delta int64) error
}

type AccountStorage interface {
	CreateAccount(ctx context.Context, acc *accounts.Account) error
	GetAccount(ctx context.Context, id string) (*accounts.Account, error)
	GetAccountsByStatus(ctx context.Context, statuses ...accounts.Status) ([]*accounts.Account, error)
}

type OrderStorage interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	GetOrdersByBuyer(ctx context.Context, buyerID string) ([]*orders.Order, error)
	GetOrdersByStatus(ctx context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error)
	GetOrdersByAccountID(ctx context.Context, accountID string, statuses ...orders.OrderStatus) ([]*orders.Order, error)
}

type TransactionStorage interface {
	CreateTransaction(ctx context.Context, txn *wallet.Transaction) error
	GetTransaction(ctx context.Context, id string) (*wallet.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string) ([]*wallet.Transaction, error)
	GetTransactionsByStatus(ctx context.Context, statuses ...wallet.Status) ([]*wallet.Transaction, error)
}

type Storage interface {
	Transactor
	UserStorage
	AccountStorage
	OrderStorage
	TransactionStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
