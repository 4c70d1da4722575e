package market

import (
	"context"
	"fmt"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
)

// GetAccountCredentials discloses the login material of a listing to its
// seller, an admin, or a buyer currently holding it through a paid or
// renting order. Anyone else gets ok == false and no error.
func (e *Engine) GetAccountCredentials(
	ctx context.Context, lc LedgerContext, accountID string,
) (creds accounts.Credentials, ok bool, err error) {
	acc, err := lc.Store.GetAccount(ctx, accountID)
	if err != nil {
		return accounts.Credentials{}, false, fmt.Errorf("store.GetAccount: %w", classify(err))
	}

	allowed, err := e.mayDisclose(ctx, lc, acc)
	if err != nil || !allowed {
		return accounts.Credentials{}, false, err
	}

	view := accounts.NewOwnerView(acc)

	return accounts.Credentials{Username: view.LoginUsername, Password: view.LoginPassword}, true, nil
}

func (e *Engine) mayDisclose(ctx context.Context, lc LedgerContext, acc *accounts.Account) (bool, error) {
	if lc.Caller.IsAnonymous() {
		return false, nil
	}

	if lc.Caller.IsAdmin() || acc.IsOwnedBy(lc.Caller.UserID) {
		return true, nil
	}

	ords, err := e.activeOrders(ctx, lc, acc.ID)
	if err != nil {
		return false, err
	}

	for _, ord := range ords {
		if ord.BuyerID == lc.Caller.UserID {
			return true, nil
		}
	}

	return false, nil
}
