// Package market is the transaction and reconciliation engine of the
// marketplace. Every operation takes a LedgerContext naming the store it
// works against and the caller on whose behalf it runs.
package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/storage"
)

// LedgerContext is the explicit per-call environment of an operation.
type LedgerContext struct {
	Store  storage.Storage
	Caller users.Identity
}

func NewLedgerContext(store storage.Storage, caller users.Identity) LedgerContext {
	return LedgerContext{Store: store, Caller: caller}
}

func (lc LedgerContext) requireCaller() error {
	if lc.Caller.IsAnonymous() {
		return ErrUnauthenticated
	}

	return nil
}

func (lc LedgerContext) requireAdmin() error {
	if err := lc.requireCaller(); err != nil {
		return err
	}

	if !lc.Caller.IsAdmin() {
		return ErrUnauthorized
	}

	return nil
}

// Engine holds the collaborators shared by all operations.
type Engine struct {
	log      *slog.Logger
	notifier notify.Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.log = logger
	}
}

func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithClock overrides the time source used for rental end dates and expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log:      slog.New(slog.DiscardHandler),
		notifier: notify.Nop{},
		now:      time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.log = e.log.With(slog.String("module", "market"))

	return e
}

// run executes fn atomically and maps whatever comes back onto an error kind.
func (e *Engine) run(ctx context.Context, lc LedgerContext, fn storage.TxFunc) error {
	return classify(lc.Store.RunTransaction(ctx, fn))
}

// publish delivers events after commit. Delivery problems never change the
// outcome of the operation that produced them.
func (e *Engine) publish(ctx context.Context, events ...notify.Event) {
	for _, evt := range events {
		if evt.SentAt.IsZero() {
			evt.SentAt = e.now()
		}

		if err := e.notifier.Notify(ctx, evt); err != nil {
			e.log.Warn("Notification failed",
				slog.String("kind", string(evt.Kind)),
				slog.String("user_id", evt.UserID),
				slog.Any("error", err),
			)
		}
	}
}
