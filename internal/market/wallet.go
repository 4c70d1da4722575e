package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/notify"
	"github.com/andymarkow/accountmart/internal/payintent"
	"github.com/andymarkow/accountmart/internal/storage"
)

// CreateTransactionRequest asks for a deposit or withdrawal. An empty UserID
// means the caller; an empty TransactionCode gets a generated reference.
type CreateTransactionRequest struct {
	UserID          string
	Amount          int64
	Type            wallet.Type
	Method          string
	TransactionCode string
}

// CreateTransaction records a pending wallet transaction. Money only moves
// once an admin approves it.
func (e *Engine) CreateTransaction(
	ctx context.Context, lc LedgerContext, req CreateTransactionRequest,
) (*wallet.Transaction, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	userID := req.UserID
	if userID == "" {
		userID = lc.Caller.UserID
	}

	if userID != lc.Caller.UserID && !lc.Caller.IsAdmin() {
		return nil, ErrUnauthorized
	}

	if userID == lc.Caller.UserID {
		if _, err := e.EnsureUser(ctx, lc); err != nil {
			return nil, err
		}
	} else if _, err := e.getUser(ctx, lc, userID); err != nil {
		return nil, err
	}

	code := req.TransactionCode
	if code == "" {
		code = payintent.ForTransaction(req.Type, req.Amount, userID)
	}

	method := req.Method
	if method == "" {
		method = wallet.MethodQR
	}

	txn, err := wallet.NewTransaction(e.newID(), userID, req.Amount, req.Type, method, code)
	if err != nil {
		return nil, classify(err)
	}

	if err := lc.Store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("store.CreateTransaction: %w", classify(err))
	}

	e.log.Info("Wallet transaction created",
		slog.String("transaction_id", txn.ID),
		slog.String("user_id", txn.UserID),
		slog.String("type", string(txn.Type)),
		slog.Int64("amount", txn.Amount),
	)

	e.publish(ctx, transactionEvent(notify.KindTransactionCreated, "Request received", txn))

	return txn, nil
}

// ApproveTransaction completes a pending transaction and applies its amount
// to the user balance in the same atomic step. A transaction moves money at
// most once: replays fail with ErrAlreadyProcessed. Admin only.
func (e *Engine) ApproveTransaction(
	ctx context.Context, lc LedgerContext, transactionID, adminNote string,
) (*wallet.Transaction, error) {
	txn, err := e.resolveTransaction(ctx, lc, transactionID, func(ctx context.Context, tx storage.Tx, txn *wallet.Transaction) error {
		if txn.Type == wallet.TypeWithdraw {
			usr, err := tx.GetUser(ctx, txn.UserID)
			if err != nil {
				return err
			}

			if usr.Balance < txn.Amount {
				return fmt.Errorf("%w: balance %d, withdrawal %d", ErrInsufficientBalance, usr.Balance, txn.Amount)
			}
		}

		if err := txn.Complete(adminNote); err != nil {
			return err
		}

		return tx.IncrementBalance(ctx, txn.UserID, txn.Delta())
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Wallet transaction approved",
		slog.String("transaction_id", txn.ID),
		slog.String("user_id", txn.UserID),
		slog.Int64("delta", txn.Delta()),
	)

	e.publish(ctx, transactionEvent(notify.KindTransactionApproved, "Request approved", txn))

	return txn, nil
}

// RejectTransaction cancels a pending transaction without touching the
// balance. Admin only.
func (e *Engine) RejectTransaction(
	ctx context.Context, lc LedgerContext, transactionID, adminNote string,
) (*wallet.Transaction, error) {
	txn, err := e.resolveTransaction(ctx, lc, transactionID, func(_ context.Context, _ storage.Tx, txn *wallet.Transaction) error {
		return txn.Cancel(adminNote)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Wallet transaction rejected",
		slog.String("transaction_id", txn.ID),
		slog.String("user_id", txn.UserID),
	)

	e.publish(ctx, transactionEvent(notify.KindTransactionRejected, "Request rejected", txn))

	return txn, nil
}

func (e *Engine) resolveTransaction(
	ctx context.Context, lc LedgerContext, transactionID string,
	apply func(ctx context.Context, tx storage.Tx, txn *wallet.Transaction) error,
) (*wallet.Transaction, error) {
	if err := lc.requireAdmin(); err != nil {
		return nil, err
	}

	var resolved *wallet.Transaction

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}

		if !txn.IsPending() {
			return fmt.Errorf("%w: transaction %s is %s", ErrAlreadyProcessed, txn.ID, txn.Status)
		}

		if err := apply(ctx, tx, txn); err != nil {
			return err
		}

		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}

		resolved = txn

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resolved, nil
}

// UpdateBalance applies a signed delta to a user balance. Admin only.
func (e *Engine) UpdateBalance(ctx context.Context, lc LedgerContext, userID string, delta int64) error {
	if err := lc.requireAdmin(); err != nil {
		return err
	}

	if delta == 0 {
		return invalidArgument("balance delta is zero")
	}

	err := e.run(ctx, lc, func(ctx context.Context, tx storage.Tx) error {
		return tx.IncrementBalance(ctx, userID, delta)
	})
	if err != nil {
		return err
	}

	e.log.Info("Balance adjusted", slog.String("user_id", userID), slog.Int64("delta", delta))

	return nil
}

// ListMyTransactions returns the caller's wallet history, newest first.
func (e *Engine) ListMyTransactions(ctx context.Context, lc LedgerContext) ([]*wallet.Transaction, error) {
	if err := lc.requireCaller(); err != nil {
		return nil, err
	}

	txns, err := lc.Store.GetTransactionsByUser(ctx, lc.Caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("store.GetTransactionsByUser: %w", classify(err))
	}

	return txns, nil
}

// ListPendingTransactions returns the approval queue. Admin only.
func (e *Engine) ListPendingTransactions(ctx context.Context, lc LedgerContext) ([]*wallet.Transaction, error) {
	if err := lc.requireAdmin(); err != nil {
		return nil, err
	}

	txns, err := lc.Store.GetTransactionsByStatus(ctx, wallet.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("store.GetTransactionsByStatus: %w", classify(err))
	}

	return txns, nil
}

func transactionEvent(kind notify.Kind, title string, txn *wallet.Transaction) notify.Event {
	return notify.Event{
		Kind:    kind,
		UserID:  txn.UserID,
		Title:   title,
		Message: fmt.Sprintf("%s of %d (%s) is %s", txn.Type, txn.Amount, txn.TransactionCode, txn.Status),
		Data: map[string]string{
			"transaction_id": txn.ID,
			"type":           string(txn.Type),
			"status":         string(txn.Status),
			"amount":         strconv.FormatInt(txn.Amount, 10),
		},
	}
}
