package market

import (
	"errors"
	"fmt"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
)

// Every operation fails with exactly one of these kinds, possibly wrapped
// together with the underlying cause.
var (
	ErrUnauthenticated     = errors.New("caller is not authenticated")
	ErrUnauthorized        = errors.New("caller is not allowed to access the entity")
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidState        = errors.New("transition is not legal from the current state")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrConflict            = errors.New("concurrent modification")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// classify maps store and domain errors onto the kinds above. Errors that
// already carry a kind pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	for _, kind := range []error{
		ErrUnauthenticated, ErrUnauthorized, ErrNotFound, ErrInvalidState,
		ErrInsufficientBalance, ErrAlreadyProcessed, ErrConflict, ErrInvalidArgument,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}

	switch {
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrAccountNotFound),
		errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrTransactionNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)

	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrUserAlreadyExists),
		errors.Is(err, storage.ErrAccountAlreadyExists),
		errors.Is(err, storage.ErrOrderAlreadyExists),
		errors.Is(err, storage.ErrTransactionAlreadyExists):
		return fmt.Errorf("%w: %w", ErrConflict, err)

	case errors.Is(err, accounts.ErrInvalidTransition),
		errors.Is(err, orders.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)

	case errors.Is(err, wallet.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrAlreadyProcessed, err)

	case errors.Is(err, users.ErrUserIDEmpty),
		errors.Is(err, users.ErrUserRoleUnknown),
		errors.Is(err, accounts.ErrAccountIDEmpty),
		errors.Is(err, accounts.ErrAccountTitleEmpty),
		errors.Is(err, accounts.ErrAccountPriceInvalid),
		errors.Is(err, accounts.ErrAccountLoginEmpty),
		errors.Is(err, accounts.ErrAccountStatusUnknown),
		errors.Is(err, orders.ErrOrderIDEmpty),
		errors.Is(err, orders.ErrOrderItemsEmpty),
		errors.Is(err, orders.ErrOrderItemInvalid),
		errors.Is(err, orders.ErrOrderItemDuplicate),
		errors.Is(err, orders.ErrOrderAmountInvalid),
		errors.Is(err, orders.ErrOrderStatusUnknown),
		errors.Is(err, orders.ErrTransactionTypeUnknown),
		errors.Is(err, wallet.ErrTransactionIDEmpty),
		errors.Is(err, wallet.ErrTransactionAmountInvalid),
		errors.Is(err, wallet.ErrTransactionTypeUnknown),
		errors.Is(err, wallet.ErrTransactionStatusUnknown):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// incompatible reports an account that cannot take part in an order. It
// matches both ErrConflict and ErrInvalidState.
func incompatible(acc *accounts.Account) error {
	return fmt.Errorf("%w: %w: account %s is %s", ErrConflict, ErrInvalidState, acc.ID, acc.Status)
}
