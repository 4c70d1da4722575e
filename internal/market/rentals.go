package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/storage"
)

// ExpiredRentals returns the ids of active orders holding at least one rental
// that has run out. Admin only.
func (e *Engine) ExpiredRentals(ctx context.Context, lc LedgerContext) ([]string, error) {
	if err := lc.requireAdmin(); err != nil {
		return nil, err
	}

	ords, err := lc.Store.GetOrdersByStatus(ctx, orders.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("store.GetOrdersByStatus: %w", classify(err))
	}

	now := e.now()

	ids := make([]string, 0)

	for _, ord := range ords {
		if len(ord.ExpiredRentals(now)) > 0 {
			ids = append(ids, ord.ID)
		}
	}

	return ids, nil
}

// CompleteRental returns the accounts of the expired rentals of an order to
// the market. The order is completed once it holds nothing else; bought
// accounts and rentals still running keep it active. An order that is no
// longer active or has nothing expired fails with ErrAlreadyProcessed and is
// left untouched. Admin only.
func (e *Engine) CompleteRental(ctx context.Context, lc LedgerContext, orderID string) error {
	if err := lc.requireAdmin(); err != nil {
		return err
	}

	var (
		buyerID  string
		status   orders.OrderStatus
		released []string
	)

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		ord, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if !ord.Status.IsActive() {
			return fmt.Errorf("%w: order %s is %s", ErrAlreadyProcessed, ord.ID, ord.Status)
		}

		expired := ord.ExpiredRentals(e.now())
		if len(expired) == 0 {
			return fmt.Errorf("%w: order %s has no expired rental", ErrAlreadyProcessed, ord.ID)
		}

		buyerID = ord.BuyerID
		released = released[:0]

		for _, item := range expired {
			if err := e.release(ctx, tx, item); err != nil {
				return err
			}

			released = append(released, item.AccountID)
		}

		if len(ord.HeldItems()) == 0 {
			if err := ord.TransitionTo(orders.OrderStatusCompleted); err != nil {
				return err
			}
		}

		status = ord.Status

		return tx.UpdateOrder(ctx, ord)
	})
	if err != nil {
		return err
	}

	e.log.Info("Rental expired",
		slog.String("order_id", orderID),
		slog.String("buyer_id", buyerID),
		slog.String("status", status.String()),
		slog.Int("released", len(released)),
	)

	e.publish(ctx, notify.Event{
		Kind:    notify.KindRentalExpired,
		UserID:  buyerID,
		Title:   "Rental ended",
		Message: fmt.Sprintf("The rental period of %s in order %s is over", strings.Join(released, ", "), orderID),
		Data: map[string]string{
			"order_id":    orderID,
			"status":      status.String(),
			"account_ids": strings.Join(released, ","),
		},
	})

	return nil
}
