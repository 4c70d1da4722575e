package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/payintent"
	"github.com/andymarkow/accountmart/internal/storage"
)

// ReclaimResult describes the compensating movements of a reclaim.
type ReclaimResult struct {
	AccountID            string
	OrderID              string
	OrderStatus          orders.OrderStatus
	BuyerID              string
	SellerID             string
	RefundAmount         int64
	RefundTransactionID  string
	PenaltyTransactionID string
}

// ReclaimAccount ends an active rental early. In one transaction the account
// returns to the market, the buyer is refunded the full rent price of that
// item and the seller is debited the same amount. Both movements are recorded
// as completed wallet transactions. The order is cancelled once it holds no
// other account; other items of a larger order keep their accounts.
func (e *Engine) ReclaimAccount(ctx context.Context, lc LedgerContext, accountID string) (*ReclaimResult, error) {
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

	ords, err := e.activeOrders(ctx, lc, accountID)
	if err != nil {
		return nil, err
	}

	var orderID string

	for _, ord := range ords {
		if item, ok := ord.Holding(accountID); ok && item.TransactionType == orders.TransactionTypeRent {
			orderID = ord.ID

			break
		}
	}

	if orderID == "" {
		return nil, fmt.Errorf("%w: no active rental for account %s", ErrNotFound, accountID)
	}

	res := &ReclaimResult{
		AccountID:            accountID,
		OrderID:              orderID,
		RefundTransactionID:  e.newID(),
		PenaltyTransactionID: e.newID(),
	}

	err = e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		ord, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		item, ok := ord.Holding(accountID)
		if !ok || item.TransactionType != orders.TransactionTypeRent {
			return fmt.Errorf("%w: %w: order %s no longer rents out account %s",
				ErrConflict, ErrAlreadyProcessed, ord.ID, accountID)
		}

		acc, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		if acc.Status != accounts.StatusRenting {
			return fmt.Errorf("%w: %w: account %s is %s", ErrConflict, ErrInvalidState, acc.ID, acc.Status)
		}

		refund := item.Price

		res.BuyerID = ord.BuyerID
		res.SellerID = acc.SellerID
		res.RefundAmount = refund

		if err := e.release(ctx, tx, item); err != nil {
			return err
		}

		if len(ord.HeldItems()) == 0 {
			if err := ord.TransitionTo(orders.OrderStatusCancelled); err != nil {
				return err
			}
		}

		res.OrderStatus = ord.Status

		if err := tx.UpdateOrder(ctx, ord); err != nil {
			return err
		}

		if err := tx.IncrementBalance(ctx, res.BuyerID, refund); err != nil {
			return err
		}

		if err := tx.IncrementBalance(ctx, res.SellerID, -refund); err != nil {
			return err
		}

		refundTxn, err := settledTransaction(res.RefundTransactionID, res.BuyerID, refund, wallet.TypeDeposit,
			wallet.MethodRefund, payintent.ForRefund(payintent.OpRefund, accountID, ord.ID), ord.ID)
		if err != nil {
			return err
		}

		penaltyTxn, err := settledTransaction(res.PenaltyTransactionID, res.SellerID, refund, wallet.TypeWithdraw,
			wallet.MethodPenalty, payintent.ForRefund(payintent.OpPenalty, accountID, ord.ID), ord.ID)
		if err != nil {
			return err
		}

		if err := tx.CreateTransaction(ctx, refundTxn); err != nil {
			return err
		}

		return tx.CreateTransaction(ctx, penaltyTxn)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Account reclaimed",
		slog.String("account_id", res.AccountID),
		slog.String("order_id", res.OrderID),
		slog.String("order_status", res.OrderStatus.String()),
		slog.String("buyer_id", res.BuyerID),
		slog.String("seller_id", res.SellerID),
		slog.Int64("refund", res.RefundAmount),
	)

	data := map[string]string{
		"account_id": res.AccountID,
		"order_id":   res.OrderID,
		"amount":     strconv.FormatInt(res.RefundAmount, 10),
	}

	e.publish(ctx,
		notify.Event{
			Kind:    notify.KindAccountReclaimed,
			UserID:  res.BuyerID,
			Title:   "Rental ended by seller",
			Message: fmt.Sprintf("Rental of %s was reclaimed, %d refunded to your balance", res.AccountID, res.RefundAmount),
			Data:    data,
		},
		notify.Event{
			Kind:    notify.KindAccountReclaimed,
			UserID:  res.SellerID,
			Title:   "Account reclaimed",
			Message: fmt.Sprintf("Account %s is available again, %d charged as penalty", res.AccountID, res.RefundAmount),
			Data:    data,
		},
	)

	return res, nil
}
