package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/storage"
)

type ListAccountRequest struct {
	Title            string
	BuyPrice         int64
	RentPricePerHour int64
	Username         string
	Password         string
}

// ListAccount puts a new listing on the market in status available. The
// caller becomes its seller.
func (e *Engine) ListAccount(ctx context.Context, lc LedgerContext, req ListAccountRequest) (accounts.OwnerView, error) {
	if _, err := e.EnsureUser(ctx, lc); err != nil {
		return accounts.OwnerView{}, err
	}

	acc, err := accounts.NewAccount(e.newID(), lc.Caller.UserID, req.Title, req.BuyPrice, req.RentPricePerHour,
		accounts.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		return accounts.OwnerView{}, classify(err)
	}

	if err := lc.Store.CreateAccount(ctx, acc); err != nil {
		return accounts.OwnerView{}, fmt.Errorf("store.CreateAccount: %w", classify(err))
	}

	e.log.Info("Account listed", slog.String("account_id", acc.ID), slog.String("seller_id", acc.SellerID))

	return accounts.NewOwnerView(acc), nil
}

// GetAccount returns the listing projected for the caller: owners, admins
// and current holders see login material, everyone else the public view.
func (e *Engine) GetAccount(ctx context.Context, lc LedgerContext, accountID string) (accounts.View, error) {
	acc, err := lc.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("store.GetAccount: %w", classify(err))
	}

	allowed, err := e.mayDisclose(ctx, lc, acc)
	if err != nil {
		return nil, err
	}

	if allowed {
		return accounts.NewOwnerView(acc), nil
	}

	return accounts.NewPublicView(acc), nil
}

// ListAvailableAccounts returns listings open for purchase or rent.
func (e *Engine) ListAvailableAccounts(ctx context.Context, lc LedgerContext) ([]accounts.PublicView, error) {
	accs, err := lc.Store.GetAccountsByStatus(ctx, accounts.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("store.GetAccountsByStatus: %w", classify(err))
	}

	views := make([]accounts.PublicView, 0, len(accs))
	for _, acc := range accs {
		views = append(views, accounts.NewPublicView(acc))
	}

	return views, nil
}

// SetAccountVisibility hides an available listing or brings a hidden one
// back. Admin only.
func (e *Engine) SetAccountVisibility(ctx context.Context, lc LedgerContext, accountID string, hidden bool) error {
	if err := lc.requireAdmin(); err != nil {
		return err
	}

	target := accounts.StatusAvailable
	if hidden {
		target = accounts.StatusHidden
	}

	var sellerID string

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		sellerID = acc.SellerID

		// Held accounts only return to the market through their order.
		if acc.Status != accounts.StatusAvailable && acc.Status != accounts.StatusHidden {
			return incompatible(acc)
		}

		if err := acc.TransitionTo(target); err != nil {
			return err
		}

		return tx.SetAccountStatus(ctx, acc.ID, acc.Status)
	})
	if err != nil {
		return err
	}

	e.log.Info("Account visibility changed", slog.String("account_id", accountID), slog.String("status", target.String()))

	e.publish(ctx, notify.Event{
		Kind:    notify.KindAccountVisibilitySet,
		UserID:  sellerID,
		Title:   "Listing visibility changed",
		Message: fmt.Sprintf("Listing %s is now %s", accountID, target),
		Data:    map[string]string{"account_id": accountID, "status": target.String()},
	})

	return nil
}

// ActiveOrdersForAccount lists the paid or renting orders holding the
// account. Visible to the seller and admins.
func (e *Engine) ActiveOrdersForAccount(ctx context.Context, lc LedgerContext, accountID string) ([]*orders.Order, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	acc, err := lc.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("store.GetAccount: %w", classify(err))
	}

	if !acc.IsOwnedBy(lc.Caller.UserID) && !lc.Caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	return e.activeOrders(ctx, lc, accountID)
}

// activeOrders returns the orders still holding the account. Items released
// by a reclaim or an expiry no longer count.
func (e *Engine) activeOrders(ctx context.Context, lc LedgerContext, accountID string) ([]*orders.Order, error) {
	ords, err := lc.Store.GetOrdersByAccountID(ctx, accountID, orders.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("store.GetOrdersByAccountID: %w", classify(err))
	}

	holding := make([]*orders.Order, 0, len(ords))

	for _, ord := range ords {
		if _, ok := ord.Holding(accountID); ok {
			holding = append(holding, ord)
		}
	}

	return holding, nil
}
