package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/storage/inmemory"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, evt)

	return r.err
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]notify.Kind, 0, len(r.events))
	for _, evt := range r.events {
		kinds = append(kinds, evt.Kind)
	}

	return kinds
}

type fixture struct {
	store  *inmemory.Storage
	engine *Engine
	events *recorder
	now    atomic.Pointer[time.Time]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		events: &recorder{},
	}

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.now.Store(&start)

	clock := func() time.Time { return *f.now.Load() }

	var seq atomic.Int64

	f.store = inmemory.NewStorage(inmemory.WithClock(clock), inmemory.WithMaxAttempts(50))
	f.engine = NewEngine(
		WithNotifier(f.events),
		WithClock(clock),
		WithIDGenerator(func() string {
			return fmt.Sprintf("id-%d", seq.Add(1))
		}),
	)

	return f
}

func (f *fixture) advance(d time.Duration) {
	next := f.now.Load().Add(d)
	f.now.Store(&next)
}

func (f *fixture) as(userID string) LedgerContext {
	return NewLedgerContext(f.store, users.Identity{UserID: userID, Role: users.RoleUser})
}

func (f *fixture) admin() LedgerContext {
	return NewLedgerContext(f.store, users.Identity{UserID: "admin", Role: users.RoleAdmin})
}

func (f *fixture) anonymous() LedgerContext {
	return NewLedgerContext(f.store, users.Identity{})
}

// user registers a user and sets the starting balance.
func (f *fixture) user(t *testing.T, id string, balance int64) {
	t.Helper()

	_, err := f.engine.EnsureUser(context.Background(), f.as(id))
	require.NoError(t, err)

	if balance != 0 {
		require.NoError(t, f.store.IncrementBalance(context.Background(), id, balance))
	}
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()

	usr, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)

	return usr.Balance
}

// list puts an account on the market on behalf of the seller.
func (f *fixture) list(t *testing.T, sellerID string, buyPrice, rentPricePerHour int64) string {
	t.Helper()

	view, err := f.engine.ListAccount(context.Background(), f.as(sellerID), ListAccountRequest{
		Title:            "Account of " + sellerID,
		BuyPrice:         buyPrice,
		RentPricePerHour: rentPricePerHour,
		Username:         "login-" + sellerID,
		Password:         "secret-" + sellerID,
	})
	require.NoError(t, err)

	return view.ID
}

func (f *fixture) accountStatus(t *testing.T, id string) accounts.Status {
	t.Helper()

	acc, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)

	return acc.Status
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.EnsureUser(ctx, f.anonymous())
	require.ErrorIs(t, err, ErrUnauthenticated)

	first, err := f.engine.EnsureUser(ctx, f.as("u1"))
	require.NoError(t, err)
	require.NoError(t, f.store.IncrementBalance(ctx, "u1", 10))

	second, err := f.engine.EnsureUser(ctx, f.as("u1"))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(10), second.Balance)

	balance, err := f.engine.GetBalance(ctx, f.as("u1"))
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	_, err = f.engine.GetBalance(ctx, f.as("ghost"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPublish_FailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("sink down")

	f.user(t, "seller", 0)
	f.user(t, "buyer", 0)
	accountID := f.list(t, "seller", 500, 0)

	_, err := f.engine.CreateOrder(context.Background(), f.as("buyer"), CreateOrderRequest{
		Status: "paid",
		Items:  []ItemRequest{{AccountID: accountID, TransactionType: "purchase"}},
	})
	require.NoError(t, err)
	require.Equal(t, accounts.StatusSold, f.accountStatus(t, accountID))
	require.Contains(t, f.events.kinds(), notify.KindOrderCreated)
}
