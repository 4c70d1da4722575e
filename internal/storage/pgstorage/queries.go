package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andymarkow/accountmart/internal/domain/accounts"
	"github.com/andymarkow/accountmart/internal/domain/orders"
	"github.com/andymarkow/accountmart/internal/domain/users"
	"github.com/andymarkow/accountmart/internal/domain/wallet"
	"github.com/andymarkow/accountmart/internal/storage"
	"github.com/andymarkow/accountmart/internal/storage/dbmodels"
	"github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	userColumns        = `id, balance, role, created_at`
	accountColumns     = `id, seller_id, title, status, buy_price, rent_price_per_hour, login_username, login_password, created_at, updated_at`
	orderColumns       = `id, buyer_id, total_amount, status, payment_reference, created_at, updated_at`
	orderItemColumns   = `order_id, position, account_id, transaction_type, price, rent_duration_hours, rent_end_date, title, released_at`
	transactionColumns = `id, user_id, amount, type, method, status, transaction_code, admin_note, order_id, created_at, updated_at`
)

func lockClause(forUpdate bool) string {
	if forUpdate {
		return ` FOR UPDATE`
	}

	return ``
}

func insertUser(ctx context.Context, q querier, usr *users.User) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO users (id, balance, role) VALUES ($1, $2, $3) RETURNING created_at`,
		usr.ID, usr.Balance, string(usr.Role))

	if err := row.Scan(&usr.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	return nil
}

func selectUser(ctx context.Context, q querier, id string, forUpdate bool) (*users.User, error) {
	dbUser := new(dbmodels.User)

	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`+lockClause(forUpdate), id)

	if err := row.Scan(&dbUser.ID, &dbUser.Balance, &dbUser.Role, &dbUser.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return toUser(dbUser)
}

// incrementBalance applies a signed delta in place, never overwriting the
// stored value.
func incrementBalance(ctx context.Context, q querier, userID string, delta int64) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}

	return expectAffected(res, storage.ErrUserNotFound)
}

func insertAccount(ctx context.Context, q querier, acc *accounts.Account) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO listed_accounts (id, seller_id, title, status, buy_price, rent_price_per_hour,`+
			` login_username, login_password) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		acc.ID, acc.SellerID, acc.Title, acc.Status.String(), acc.BuyPrice, acc.RentPricePerHour,
		acc.Credentials.Username, acc.Credentials.Password,
	)

	if err := row.Scan(&acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAccountAlreadyExists
		}

		if _, ok := foreignKeyViolation(err); ok {
			return storage.ErrUserNotFound
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	return nil
}

func scanAccount(scan func(dest ...any) error) (*dbmodels.Account, error) {
	dbAcc := new(dbmodels.Account)

	err := scan(
		&dbAcc.ID, &dbAcc.SellerID, &dbAcc.Title, &dbAcc.Status, &dbAcc.BuyPrice, &dbAcc.RentPricePerHour,
		&dbAcc.LoginUsername, &dbAcc.LoginPassword, &dbAcc.CreatedAt, &dbAcc.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return dbAcc, nil
}

func selectAccount(ctx context.Context, q querier, id string, forUpdate bool) (*accounts.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM listed_accounts WHERE id = $1`+lockClause(forUpdate), id)

	dbAcc, err := scanAccount(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAccountNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return toAccount(dbAcc)
}

func selectAccountsByStatus(ctx context.Context, q querier, statuses []accounts.Status) ([]*accounts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM listed_accounts`
	args := []any{}

	if len(statuses) > 0 {
		strs := make([]string, len(statuses))
		for i, st := range statuses {
			strs[i] = st.String()
		}

		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(strs))
	}

	query += ` ORDER BY created_at DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	accs := make([]*accounts.Account, 0)

	for rows.Next() {
		dbAcc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		acc, err := toAccount(dbAcc)
		if err != nil {
			return nil, err
		}

		accs = append(accs, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return accs, nil
}

func updateAccountStatus(ctx context.Context, q querier, id string, status accounts.Status) error {
	res, err := q.ExecContext(ctx,
		`UPDATE listed_accounts SET status = $1, updated_at = now() WHERE id = $2`, status.String(), id)
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}

	return expectAffected(res, storage.ErrAccountNotFound)
}

func insertOrder(ctx context.Context, q querier, ord *orders.Order) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO orders (id, buyer_id, total_amount, status, payment_reference)`+
			` VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`,
		ord.ID, ord.BuyerID, ord.TotalAmount, ord.Status.String(), nullString(ord.PaymentReference),
	)

	if err := row.Scan(&ord.CreatedAt, &ord.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrOrderAlreadyExists
		}

		if _, ok := foreignKeyViolation(err); ok {
			return storage.ErrUserNotFound
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	for i, item := range ord.Items {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO order_items (`+orderItemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ord.ID, i, item.AccountID, string(item.TransactionType), item.Price,
			nullInt32(item.RentDurationHours), nullTime(item.RentEndDate), nullString(item.Title),
			nullTime(item.ReleasedAt),
		); err != nil {
			if _, ok := foreignKeyViolation(err); ok {
				return storage.ErrAccountNotFound
			}

			return fmt.Errorf("ExecContext: %w", err)
		}
	}

	return nil
}

// updateOrder persists the status of an order and the rental end and release
// times of its items.
func updateOrder(ctx context.Context, q querier, ord *orders.Order) error {
	row := q.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, payment_reference = $2, updated_at = now() WHERE id = $3 RETURNING updated_at`,
		ord.Status.String(), nullString(ord.PaymentReference), ord.ID,
	)

	if err := row.Scan(&ord.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrOrderNotFound
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	for i, item := range ord.Items {
		if _, err := q.ExecContext(ctx,
			`UPDATE order_items SET rent_end_date = $1, released_at = $2 WHERE order_id = $3 AND position = $4`,
			nullTime(item.RentEndDate), nullTime(item.ReleasedAt), ord.ID, i,
		); err != nil {
			return fmt.Errorf("ExecContext: %w", err)
		}
	}

	return nil
}

func scanOrder(scan func(dest ...any) error) (*dbmodels.Order, error) {
	dbOrder := new(dbmodels.Order)

	err := scan(
		&dbOrder.ID, &dbOrder.BuyerID, &dbOrder.TotalAmount, &dbOrder.Status,
		&dbOrder.PaymentReference, &dbOrder.CreatedAt, &dbOrder.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return dbOrder, nil
}

func selectOrder(ctx context.Context, q querier, id string, forUpdate bool) (*orders.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lockClause(forUpdate), id)

	dbOrder, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOrderNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	items, err := selectOrderItems(ctx, q, []string{dbOrder.ID})
	if err != nil {
		return nil, err
	}

	return toOrder(dbOrder, items[dbOrder.ID])
}

func selectOrders(ctx context.Context, q querier, query string, args ...any) ([]*orders.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	dbOrders := make([]*dbmodels.Order, 0)

	for rows.Next() {
		dbOrder, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		dbOrders = append(dbOrders, dbOrder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	if len(dbOrders) == 0 {
		return []*orders.Order{}, nil
	}

	ids := make([]string, len(dbOrders))
	for i, o := range dbOrders {
		ids[i] = o.ID
	}

	items, err := selectOrderItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	ords := make([]*orders.Order, 0, len(dbOrders))

	for _, dbOrder := range dbOrders {
		ord, err := toOrder(dbOrder, items[dbOrder.ID])
		if err != nil {
			return nil, err
		}

		ords = append(ords, ord)
	}

	return ords, nil
}

func selectOrderItems(ctx context.Context, q querier, orderIDs []string) (map[string][]*dbmodels.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]*dbmodels.OrderItem, len(orderIDs))

	for rows.Next() {
		item := new(dbmodels.OrderItem)

		if err := rows.Scan(
			&item.OrderID, &item.Position, &item.AccountID, &item.TransactionType, &item.Price,
			&item.RentDurationHours, &item.RentEndDate, &item.Title, &item.ReleasedAt,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}

func insertTransaction(ctx context.Context, q querier, txn *wallet.Transaction) error {
	row := q.QueryRowContext(ctx,
		`INSERT INTO wallet_transactions (id, user_id, amount, type, method, status, transaction_code, admin_note, order_id)`+
			` VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at, updated_at`,
		txn.ID, txn.UserID, txn.Amount, string(txn.Type), txn.Method, string(txn.Status),
		nullString(txn.TransactionCode), nullString(txn.AdminNote), nullString(txn.OrderID),
	)

	if err := row.Scan(&txn.CreatedAt, &txn.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrTransactionAlreadyExists
		}

		if constraint, ok := foreignKeyViolation(err); ok {
			if strings.Contains(constraint, "order_id") {
				return storage.ErrOrderNotFound
			}

			return storage.ErrUserNotFound
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	return nil
}

func updateTransaction(ctx context.Context, q querier, txn *wallet.Transaction) error {
	row := q.QueryRowContext(ctx,
		`UPDATE wallet_transactions SET status = $1, admin_note = $2, updated_at = now() WHERE id = $3 RETURNING updated_at`,
		string(txn.Status), nullString(txn.AdminNote), txn.ID,
	)

	if err := row.Scan(&txn.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrTransactionNotFound
		}

		return fmt.Errorf("row.Scan: %w", err)
	}

	return nil
}

func scanTransaction(scan func(dest ...any) error) (*dbmodels.WalletTransaction, error) {
	dbTxn := new(dbmodels.WalletTransaction)

	err := scan(
		&dbTxn.ID, &dbTxn.UserID, &dbTxn.Amount, &dbTxn.Type, &dbTxn.Method, &dbTxn.Status,
		&dbTxn.TransactionCode, &dbTxn.AdminNote, &dbTxn.OrderID, &dbTxn.CreatedAt, &dbTxn.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return dbTxn, nil
}

func selectTransaction(ctx context.Context, q querier, id string, forUpdate bool) (*wallet.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = $1`+lockClause(forUpdate), id)

	dbTxn, err := scanTransaction(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTransactionNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return toTransaction(dbTxn)
}

func selectTransactions(ctx context.Context, q querier, query string, args ...any) ([]*wallet.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	txns := make([]*wallet.Transaction, 0)

	for rows.Next() {
		dbTxn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		txn, err := toTransaction(dbTxn)
		if err != nil {
			return nil, err
		}

		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return txns, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("res.RowsAffected: %w", err)
	}

	if n == 0 {
		return notFound
	}

	return nil
}

func orderStatusArray(statuses []orders.OrderStatus) any {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = st.String()
	}

	return pq.Array(strs)
}

func walletStatusArray(statuses []wallet.Status) any {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}

	return pq.Array(strs)
}
