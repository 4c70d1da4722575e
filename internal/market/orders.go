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

// ItemRequest is one line of an order. A zero Price means the listing price:
// the buy price for purchases, the hourly price times the duration for rents.
type ItemRequest struct {
	AccountID         string
	TransactionType   orders.TransactionType
	Price             int64
	RentDurationHours int
}

// CreateOrderRequest describes an order whose payment is settled outside the
// wallet. An empty BuyerID means the caller; a zero TotalAmount means the sum
// of the item prices.
type CreateOrderRequest struct {
	BuyerID     string
	TotalAmount int64
	Status      orders.OrderStatus
	Items       []ItemRequest
}

// CreateOrder records an order atomically. A paid order takes hold of every
// referenced account at once; a pending one only reserves a payment reference.
func (e *Engine) CreateOrder(ctx context.Context, lc LedgerContext, req CreateOrderRequest) (*orders.Order, error) {
	if _, err := e.EnsureUser(ctx, lc); err != nil {
		return nil, err
	}

	buyerID := req.BuyerID
	if buyerID == "" {
		buyerID = lc.Caller.UserID
	}

	if buyerID != lc.Caller.UserID && !lc.Caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	if req.Status != orders.OrderStatusPending && req.Status != orders.OrderStatusPaid {
		return nil, invalidArgument("order can only be created pending or paid, got %q", req.Status)
	}

	orderID := e.newID()

	var created *orders.Order

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		// Refunds are credited to the buyer, so the record has to exist.
		if _, err := tx.GetUser(ctx, buyerID); err != nil {
			return err
		}

		ord, _, err := e.buildOrder(ctx, tx, orderID, buyerID, req.TotalAmount, req.Status, req.Items)
		if err != nil {
			return err
		}

		if ord.Status == orders.OrderStatusPaid {
			if err := e.hold(ctx, tx, ord); err != nil {
				return err
			}
		} else {
			ord.PaymentReference = payintent.ForOrder(ord)
		}

		if err := tx.CreateOrder(ctx, ord); err != nil {
			return err
		}

		created = ord

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Order created",
		slog.String("order_id", created.ID),
		slog.String("buyer_id", created.BuyerID),
		slog.String("status", created.Status.String()),
	)

	e.publish(ctx, orderCreatedEvent(created))

	return created, nil
}

// CheckoutWithBalance pays for the items from the caller's wallet in one
// transaction: the buyer is debited, every seller credited, the order is
// created paid and completed wallet records are written for both sides.
func (e *Engine) CheckoutWithBalance(ctx context.Context, lc LedgerContext, items []ItemRequest) (*orders.Order, error) {
	if _, err := e.EnsureUser(ctx, lc); err != nil {
		return nil, err
	}

	buyerID := lc.Caller.UserID
	orderID := e.newID()
	buyerTxnID := e.newID()

	sellerTxnIDs := make([]string, len(items))
	for i := range sellerTxnIDs {
		sellerTxnIDs[i] = e.newID()
	}

	var created *orders.Order

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		ord, sellers, err := e.buildOrder(ctx, tx, orderID, buyerID, 0, orders.OrderStatusPaid, items)
		if err != nil {
			return err
		}

		buyer, err := tx.GetUser(ctx, buyerID)
		if err != nil {
			return err
		}

		if buyer.Balance < ord.TotalAmount {
			return fmt.Errorf("%w: balance %d, order total %d", ErrInsufficientBalance, buyer.Balance, ord.TotalAmount)
		}

		if err := e.hold(ctx, tx, ord); err != nil {
			return err
		}

		if err := tx.CreateOrder(ctx, ord); err != nil {
			return err
		}

		if err := tx.IncrementBalance(ctx, buyerID, -ord.TotalAmount); err != nil {
			return err
		}

		debit, err := settledTransaction(buyerTxnID, buyerID, ord.TotalAmount, wallet.TypeWithdraw,
			wallet.MethodBalance, payintent.ForOrder(ord), ord.ID)
		if err != nil {
			return err
		}

		if err := tx.CreateTransaction(ctx, debit); err != nil {
			return err
		}

		for i, item := range ord.Items {
			sellerID := sellers[item.AccountID]

			if err := tx.IncrementBalance(ctx, sellerID, item.Price); err != nil {
				return err
			}

			credit, err := settledTransaction(sellerTxnIDs[i], sellerID, item.Price, wallet.TypeDeposit,
				wallet.MethodBalance, payintent.Format(payintent.OpOrder, ord.ID, item.AccountID, sellerID), ord.ID)
			if err != nil {
				return err
			}

			if err := tx.CreateTransaction(ctx, credit); err != nil {
				return err
			}
		}

		created = ord

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Order paid from balance",
		slog.String("order_id", created.ID),
		slog.String("buyer_id", created.BuyerID),
		slog.Int64("total_amount", created.TotalAmount),
	)

	e.publish(ctx, orderCreatedEvent(created))

	return created, nil
}

// UpdateOrderStatus moves an order along its status graph. Admins may apply
// any legal transition; the buyer may only settle or cancel a pending order.
// Refunding or cancelling an active order returns every account it still
// holds to the market, bought ones included. Completing it ends its rentals;
// an order still holding bought accounts cannot be completed.
func (e *Engine) UpdateOrderStatus(
	ctx context.Context, lc LedgerContext, orderID string, status orders.OrderStatus,
) (*orders.Order, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	if _, err := orders.ParseOrderStatus(string(status)); err != nil {
		return nil, classify(err)
	}

	var (
		updated *orders.Order
		from    orders.OrderStatus
	)

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		ord, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !lc.Caller.IsAdmin() {
			if ord.BuyerID != lc.Caller.UserID {
				return ErrUnauthorized
			}

			if ord.Status != orders.OrderStatusPending ||
				(status != orders.OrderStatusPaid && status != orders.OrderStatusCancelled) {
				return fmt.Errorf("%w: buyer cannot move order from %s to %s", ErrUnauthorized, ord.Status, status)
			}
		}

		from = ord.Status

		if err := ord.TransitionTo(status); err != nil {
			return err
		}

		switch {
		case from == orders.OrderStatusPending && status == orders.OrderStatusPaid:
			if err := e.hold(ctx, tx, ord); err != nil {
				return err
			}
		case from.IsActive() && !status.IsActive():
			if status == orders.OrderStatusCompleted && ord.HoldsPurchase() {
				return fmt.Errorf("%w: order %s still holds bought accounts", ErrInvalidState, ord.ID)
			}

			if err := e.releaseHeld(ctx, tx, ord); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrder(ctx, ord); err != nil {
			return err
		}

		updated = ord

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Order status updated",
		slog.String("order_id", updated.ID),
		slog.String("from", from.String()),
		slog.String("to", updated.Status.String()),
	)

	e.publish(ctx, notify.Event{
		Kind:    notify.KindOrderStatusChanged,
		UserID:  updated.BuyerID,
		Title:   "Order updated",
		Message: fmt.Sprintf("Order %s is now %s", updated.ID, updated.Status),
		Data:    map[string]string{"order_id": updated.ID, "from": from.String(), "to": updated.Status.String()},
	})

	return updated, nil
}

// ListMyOrders returns the caller's orders, newest first.
func (e *Engine) ListMyOrders(ctx context.Context, lc LedgerContext) ([]*orders.Order, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	ords, err := lc.Store.GetOrdersByBuyer(ctx, lc.Caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("store.GetOrdersByBuyer: %w", classify(err))
	}

	return ords, nil
}

// buildOrder resolves the requested items against the listings read inside
// tx. It returns the order and the seller of every referenced account.
func (e *Engine) buildOrder(
	ctx context.Context, tx storage.Tx, orderID, buyerID string, total int64,
	status orders.OrderStatus, reqs []ItemRequest,
) (*orders.Order, map[string]string, error) {
	if len(reqs) == 0 {
		return nil, nil, classify(orders.ErrOrderItemsEmpty)
	}

	items := make([]orders.Item, 0, len(reqs))
	sellers := make(map[string]string, len(reqs))

	for _, req := range reqs {
		if _, err := orders.ParseTransactionType(string(req.TransactionType)); err != nil {
			return nil, nil, classify(err)
		}

		if req.TransactionType == orders.TransactionTypeRent && req.RentDurationHours <= 0 {
			return nil, nil, invalidArgument("rent of account %s needs a positive duration", req.AccountID)
		}

		if req.Price < 0 {
			return nil, nil, invalidArgument("price of account %s is negative", req.AccountID)
		}

		acc, err := tx.GetAccount(ctx, req.AccountID)
		if err != nil {
			return nil, nil, err
		}

		if acc.IsOwnedBy(buyerID) {
			return nil, nil, invalidArgument("buyer %s is the seller of account %s", buyerID, acc.ID)
		}

		if acc.Status != accounts.StatusAvailable {
			return nil, nil, incompatible(acc)
		}

		price := req.Price
		if price == 0 {
			price, err = listPrice(acc, req.TransactionType, req.RentDurationHours)
			if err != nil {
				return nil, nil, err
			}
		}

		sellers[acc.ID] = acc.SellerID

		items = append(items, orders.Item{
			AccountID:         acc.ID,
			TransactionType:   req.TransactionType,
			Price:             price,
			RentDurationHours: req.RentDurationHours,
			Title:             acc.Title,
		})
	}

	if total == 0 {
		for _, item := range items {
			total += item.Price
		}
	}

	ord, err := orders.NewOrder(orderID, buyerID, total, status, items)
	if err != nil {
		return nil, nil, classify(err)
	}

	return ord, sellers, nil
}

func listPrice(acc *accounts.Account, typ orders.TransactionType, hours int) (int64, error) {
	if typ == orders.TransactionTypeRent {
		if acc.RentPricePerHour == 0 {
			return 0, invalidArgument("account %s is not offered for rent", acc.ID)
		}

		return acc.RentPricePerHour * int64(hours), nil
	}

	if acc.BuyPrice == 0 {
		return 0, invalidArgument("account %s is not offered for sale", acc.ID)
	}

	return acc.BuyPrice, nil
}

// hold flips every account of a freshly paid order to sold or renting and
// starts the rental clocks.
func (e *Engine) hold(ctx context.Context, tx storage.Tx, ord *orders.Order) error {
	paidAt := e.now()

	for i := range ord.Items {
		item := &ord.Items[i]

		acc, err := tx.GetAccount(ctx, item.AccountID)
		if err != nil {
			return err
		}

		if acc.Status != accounts.StatusAvailable {
			return incompatible(acc)
		}

		if err := acc.TransitionTo(item.TransactionType.TargetStatus()); err != nil {
			return err
		}

		if err := tx.SetAccountStatus(ctx, acc.ID, acc.Status); err != nil {
			return err
		}

		item.StartRent(paidAt)
	}

	return nil
}

// release returns the account of a held item to the market and marks the
// item released. An account that has already left the status the item put
// it in is left alone.
func (e *Engine) release(ctx context.Context, tx storage.Tx, item *orders.Item) error {
	acc, err := tx.GetAccount(ctx, item.AccountID)
	if err != nil {
		return err
	}

	if acc.Status == item.TransactionType.TargetStatus() {
		if err := acc.TransitionTo(accounts.StatusAvailable); err != nil {
			return err
		}

		if err := tx.SetAccountStatus(ctx, acc.ID, acc.Status); err != nil {
			return err
		}
	}

	item.Release(e.now())

	return nil
}

// releaseHeld releases every item the order still holds.
func (e *Engine) releaseHeld(ctx context.Context, tx storage.Tx, ord *orders.Order) error {
	for _, item := range ord.HeldItems() {
		if err := e.release(ctx, tx, item); err != nil {
			return err
		}
	}

	return nil
}

// settledTransaction builds a wallet record whose money has already moved.
func settledTransaction(id, userID string, amount int64, typ wallet.Type, method, code, orderID string) (*wallet.Transaction, error) {
	txn, err := wallet.NewTransaction(id, userID, amount, typ, method, code)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err := txn.Complete(""); err != nil {
		return nil, err //nolint:wrapcheck
	}

	txn.OrderID = orderID

	return txn, nil
}

func orderCreatedEvent(ord *orders.Order) notify.Event {
	data := map[string]string{
		"order_id":     ord.ID,
		"status":       ord.Status.String(),
		"total_amount": strconv.FormatInt(ord.TotalAmount, 10),
	}

	msg := fmt.Sprintf("Order %s for %d is %s", ord.ID, ord.TotalAmount, ord.Status)

	if ord.PaymentReference != "" {
		data["payment_reference"] = ord.PaymentReference
		msg += ", transfer reference " + ord.PaymentReference
	}

	return notify.Event{
		Kind:    notify.KindOrderCreated,
		UserID:  ord.BuyerID,
		Title:   "Order created",
		Message: msg,
		Data:    data,
	}
}
