package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/storage"
)

// EnsureUser returns the caller's user record, creating it with a zero
// balance on first use.
func (e *Engine) EnsureUser(ctx context.Context, lc LedgerContext) (*users.User, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	usr, err := lc.Store.GetUser(ctx, lc.Caller.UserID)
	if err == nil {
		return usr, nil
	}

	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("store.GetUser: %w", classify(err))
	}

	usr, err = users.NewUser(lc.Caller.UserID, lc.Caller.Role)
	if err != nil {
		return nil, classify(err)
	}

	if err := lc.Store.CreateUser(ctx, usr); err != nil {
		// Lost a race with another first request of the same user.
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return e.getUser(ctx, lc, lc.Caller.UserID)
		}

		return nil, fmt.Errorf("store.CreateUser: %w", classify(err))
	}

	e.log.Info("User registered", slog.String("user_id", usr.ID))

	return usr, nil
}

func (e *Engine) getUser(ctx context.Context, lc LedgerContext, id string) (*users.User, error) {
	usr, err := lc.Store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("store.GetUser: %w", classify(err))
	}

	return usr, nil
}

// GetBalance returns the caller's current balance.
func (e *Engine) GetBalance(ctx context.Context, lc LedgerContext) (int64, error) {
	if err := lc.requireCaller(); err != nil {
		return 0, err
	}

	usr, err := e.getUser(ctx, lc, lc.Caller.UserID)
	if err != nil {
		return 0, err
	}

	return usr.Balance, nil
}
