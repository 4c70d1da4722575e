package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps every record in process memory. Transactions are optimistic:
// a body runs against private working copies and commits only if none of the
// records it read changed in between.
type Storage struct {
	mu sync.RWMutex

	users        *table[users.User]
	accounts     *table[accounts.Account]
	orders       *table[orders.Order]
	transactions *table[wallet.Transaction]

	maxAttempts int
	now         func() time.Time
}

type Option func(s *Storage)

// WithMaxAttempts sets how many times a conflicting transaction body is run.
func WithMaxAttempts(attempts int) Option {
	return func(s *Storage) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// WithClock overrides the source of server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		users:        newTable(cloneUser),
		accounts:     newTable(cloneAccount),
		orders:       newTable(cloneOrder),
		transactions: newTable(cloneTransaction),
		maxAttempts:  5,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) RunTransaction(ctx context.Context, fn storage.TxFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ctx.Err: %w", err)
		}

		tx := s.begin()

		if err := fn(ctx, tx); err != nil {
			// A body may fail because it saw a snapshot that is already
			// outdated. Rerun it in that case instead of reporting the error.
			if s.stale(tx) {
				continue
			}

			return err
		}

		if s.commit(tx) {
			return nil
		}
	}

	return fmt.Errorf("%w: gave up after %d attempts", storage.ErrConflict, s.maxAttempts)
}

func (s *Storage) begin() *memTx {
	return &memTx{
		mu:           &s.mu,
		now:          s.now(),
		users:        newTxTable(s.users),
		accounts:     newTxTable(s.accounts),
		orders:       newTxTable(s.orders),
		transactions: newTxTable(s.transactions),
	}
}

func (s *Storage) stale(tx *memTx) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return !tx.valid()
}

func (s *Storage) commit(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !tx.valid() {
		return false
	}

	tx.users.apply()
	tx.accounts.apply()
	tx.orders.apply()
	tx.transactions.apply()

	return true
}

func (s *Storage) CreateUser(_ context.Context, usr *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users.get(usr.ID); ok {
		return storage.ErrUserAlreadyExists
	}

	usr.CreatedAt = s.now()

	s.users.put(usr.ID, usr)

	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (*users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, ok := s.users.get(id)
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return usr, nil
}

func (s *Storage) IncrementBalance(_ context.Context, userID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users.get(userID)
	if !ok {
		return storage.ErrUserNotFound
	}

	usr.Balance += delta

	s.users.put(userID, usr)

	return nil
}

func (s *Storage) CreateAccount(_ context.Context, acc *accounts.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts.get(acc.ID); ok {
		return storage.ErrAccountAlreadyExists
	}

	acc.CreatedAt = s.now()
	acc.UpdatedAt = acc.CreatedAt

	s.accounts.put(acc.ID, acc)

	return nil
}

func (s *Storage) GetAccount(_ context.Context, id string) (*accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts.get(id)
	if !ok {
		return nil, storage.ErrAccountNotFound
	}

	return acc, nil
}

func (s *Storage) GetAccountsByStatus(_ context.Context, statuses ...accounts.Status) ([]*accounts.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accs := s.accounts.list(func(a *accounts.Account) bool {
		return len(statuses) == 0 || slices.Contains(statuses, a.Status)
	})

	sort.Slice(accs, func(i, j int) bool {
		return accs[i].CreatedAt.After(accs[j].CreatedAt)
	})

	return accs, nil
}

func (s *Storage) GetOrder(_ context.Context, id string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ord, ok := s.orders.get(id)
	if !ok {
		return nil, storage.ErrOrderNotFound
	}

	return ord, nil
}

func (s *Storage) GetOrdersByBuyer(_ context.Context, buyerID string) ([]*orders.Order, error) {
	return s.listOrders(func(o *orders.Order) bool {
		return o.BuyerID == buyerID
	}), nil
}

func (s *Storage) GetOrdersByStatus(_ context.Context, statuses ...orders.OrderStatus) ([]*orders.Order, error) {
	return s.listOrders(func(o *orders.Order) bool {
		return len(statuses) == 0 || slices.Contains(statuses, o.Status)
	}), nil
}

// GetOrdersByAccountID scans every order. There is no secondary index here.
func (s *Storage) GetOrdersByAccountID(
	_ context.Context, accountID string, statuses ...orders.OrderStatus,
) ([]*orders.Order, error) {
	return s.listOrders(func(o *orders.Order) bool {
		if len(statuses) > 0 && !slices.Contains(statuses, o.Status) {
			return false
		}

		_, ok := o.ItemFor(accountID)

		return ok
	}), nil
}

func (s *Storage) listOrders(match func(*orders.Order) bool) []*orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ords := s.orders.list(match)

	sort.Slice(ords, func(i, j int) bool {
		return ords[i].CreatedAt.After(ords[j].CreatedAt)
	})

	return ords
}

func (s *Storage) CreateTransaction(_ context.Context, txn *wallet.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions.get(txn.ID); ok {
		return storage.ErrTransactionAlreadyExists
	}

	txn.CreatedAt = s.now()
	txn.UpdatedAt = txn.CreatedAt

	s.transactions.put(txn.ID, txn)

	return nil
}

func (s *Storage) GetTransaction(_ context.Context, id string) (*wallet.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions.get(id)
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}

	return txn, nil
}

func (s *Storage) GetTransactionsByUser(_ context.Context, userID string) ([]*wallet.Transaction, error) {
	return s.listTransactions(func(t *wallet.Transaction) bool {
		return t.UserID == userID
	}), nil
}

func (s *Storage) GetTransactionsByStatus(_ context.Context, statuses ...wallet.Status) ([]*wallet.Transaction, error) {
	return s.listTransactions(func(t *wallet.Transaction) bool {
		return len(statuses) == 0 || slices.Contains(statuses, t.Status)
	}), nil
}

func (s *Storage) listTransactions(match func(*wallet.Transaction) bool) []*wallet.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.transactions.list(match)

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	return txns
}

func cloneUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}

	c := *u

	return &c
}

func cloneAccount(a *accounts.Account) *accounts.Account {
	if a == nil {
		return nil
	}

	c := *a

	return &c
}

func cloneOrder(o *orders.Order) *orders.Order {
	if o == nil {
		return nil
	}

	c := *o
	c.Items = make([]orders.Item, len(o.Items))

	for i, item := range o.Items {
		if item.RentEndDate != nil {
			end := *item.RentEndDate
			item.RentEndDate = &end
		}

		if item.ReleasedAt != nil {
			at := *item.ReleasedAt
			item.ReleasedAt = &at
		}

		c.Items[i] = item
	}

	return &c
}

func cloneTransaction(t *wallet.Transaction) *wallet.Transaction {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}
